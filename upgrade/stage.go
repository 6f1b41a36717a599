package upgrade

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cometbft/cometbft/crypto/tmhash"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	cmtos "github.com/cometbft/cometbft/libs/os"
)

const DefaultPlatform = "linux/amd64"

// Artifact is a file to publish to the nodes, local or at a URL.
type Artifact struct {
	Path string `mapstructure:"path"`
	// URL, when Path is empty, is downloaded and staged like a local file.
	URL string `mapstructure:"url"`
	// Platform keys the artifact in the upgrade info, e.g. linux/amd64.
	Platform string `mapstructure:"platform"`
	// Checksum, when set, pins the expected sha256 hex digest.
	Checksum string `mapstructure:"checksum"`
}

type StagedArtifact struct {
	Artifact
	Sha256     string
	StagedPath string
	URL        string
}

// Stager copies artifacts into a content-addressed directory served to
// the nodes at baseURL.
type Stager struct {
	logger  cmtlog.Logger
	dir     string
	baseURL string
	client  *http.Client
}

func NewStager(dir, baseURL string, logger cmtlog.Logger) *Stager {
	return &Stager{
		logger:  logger.With("module", "stage"),
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (s *Stager) Dir() string {
	return s.dir
}

// FileChecksum is the hex sha256 of the file at path.
func FileChecksum(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := tmhash.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", file, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumURL appends the sha256 checksum query cosmovisor verifies downloads with.
func ChecksumURL(base string, sum string) string {
	return base + "?checksum=sha256:" + sum
}

// ReleaseURL is where a GitHub release of repo (owner/name) publishes file.
func ReleaseURL(repo, tag, file string) string {
	return fmt.Sprintf("https://github.com/%s/releases/download/%s/%s", repo, tag, file)
}

// download fetches rawURL into a scratch directory under the stage dir and
// returns the local path and a cleanup func.
func (s *Stager) download(ctx context.Context, rawURL string) (string, func(), error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("artifact url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "", nil, fmt.Errorf("artifact url %q has no file name", rawURL)
	}
	if err = cmtos.EnsureDir(s.dir, 0o755); err != nil {
		return "", nil, err
	}
	tmp, err := os.MkdirTemp(s.dir, ".download-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(tmp) }

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		cleanup()
		return "", nil, fmt.Errorf("download %s: status %d", rawURL, res.StatusCode)
	}
	local := filepath.Join(tmp, name)
	f, err := os.Create(local)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	n, err := io.Copy(f, res.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	s.logger.Info("artifact downloaded", "url", rawURL, "bytes", n)
	return local, cleanup, nil
}

// Stage hashes a, copies it to <dir>/<sha256>/<file> and hashes the copy
// again. Any digest disagreement is an *ArtifactIntegrityError. A URL
// artifact is downloaded first.
func (s *Stager) Stage(ctx context.Context, a Artifact) (*StagedArtifact, error) {
	src := a.Path
	if src == "" {
		if a.URL == "" {
			return nil, errors.New("artifact has neither path nor url")
		}
		local, cleanup, err := s.download(ctx, a.URL)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		src = local
	}
	sum, err := FileChecksum(src)
	if err != nil {
		return nil, err
	}
	if a.Checksum != "" && !strings.EqualFold(a.Checksum, sum) {
		return nil, &ArtifactIntegrityError{Path: cmpOr(a.Path, a.URL), Expected: strings.ToLower(a.Checksum), Actual: sum}
	}
	if a.Platform == "" {
		a.Platform = DefaultPlatform
	}

	name := filepath.Base(src)
	dir := filepath.Join(s.dir, sum)
	if err = cmtos.EnsureDir(dir, 0o755); err != nil {
		return nil, err
	}
	staged := filepath.Join(dir, name)
	if err = cmtos.CopyFile(src, staged); err != nil {
		return nil, fmt.Errorf("stage %s: %w", src, err)
	}
	stagedSum, err := FileChecksum(staged)
	if err != nil {
		return nil, err
	}
	if stagedSum != sum {
		return nil, &ArtifactIntegrityError{Path: staged, Expected: sum, Actual: stagedSum}
	}

	u, err := url.JoinPath(s.baseURL, sum, name)
	if err != nil {
		return nil, fmt.Errorf("artifact url: %w", err)
	}
	s.logger.Info("artifact staged", "path", src, "url", a.URL, "platform", a.Platform, "sha256", sum)
	return &StagedArtifact{
		Artifact:   a,
		Sha256:     sum,
		StagedPath: staged,
		URL:        ChecksumURL(u, sum),
	}, nil
}

// StageAll stages every artifact and maps platform to checksum URL.
func (s *Stager) StageAll(ctx context.Context, artifacts []Artifact) ([]*StagedArtifact, map[string]string, error) {
	staged := make([]*StagedArtifact, 0, len(artifacts))
	urls := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		sa, err := s.Stage(ctx, a)
		if err != nil {
			return staged, nil, err
		}
		if _, dup := urls[sa.Platform]; dup {
			return staged, nil, fmt.Errorf("two artifacts for platform %s", sa.Platform)
		}
		staged = append(staged, sa)
		urls[sa.Platform] = sa.URL
	}
	return staged, urls, nil
}

// cmpOr returns the first of its arguments that is not the zero value
// (backport of Go 1.22's cmp.Or).
func cmpOr[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}
