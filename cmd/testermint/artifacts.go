package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gradosphera/gonka/upgrade"
)

// parseArtifacts reads [platform=]path[#sha256] flag values; an http(s)
// path is downloaded when staged.
func parseArtifacts(values []string) ([]upgrade.Artifact, error) {
	artifacts := make([]upgrade.Artifact, 0, len(values))
	for _, v := range values {
		a := upgrade.Artifact{Platform: upgrade.DefaultPlatform}
		if platform, rest, ok := strings.Cut(v, "="); ok {
			a.Platform, v = platform, rest
		}
		a.Path, a.Checksum, _ = strings.Cut(v, "#")
		if strings.HasPrefix(a.Path, "http://") || strings.HasPrefix(a.Path, "https://") {
			a.URL, a.Path = a.Path, ""
		}
		if (a.Path == "" && a.URL == "") || a.Platform == "" {
			return nil, fmt.Errorf("invalid artifact %q, want [platform=]path[#sha256]", v)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

type nodeInfo struct {
	Height    uint64 `json:"height"`
	Version   string `json:"version,omitempty"`
	Converged bool   `json:"converged"`
	Err       string `json:"err,omitempty"`
}

type reportInfo struct {
	Name             string              `json:"name"`
	ProposalID       uint64              `json:"proposal_id"`
	ActivationHeight uint64              `json:"activation_height"`
	Outcome          *outcomeInfo        `json:"outcome,omitempty"`
	Artifacts        map[string]string   `json:"artifacts,omitempty"`
	Nodes            map[string]nodeInfo `json:"nodes"`
}

func reportView(rep *upgrade.Report) reportInfo {
	info := reportInfo{
		Name:             rep.Name,
		ProposalID:       rep.ProposalID,
		ActivationHeight: rep.ActivationHeight,
		Artifacts:        map[string]string{},
		Nodes:            map[string]nodeInfo{},
	}
	if rep.Outcome != nil {
		out := outcomeView(rep.Outcome)
		info.Outcome = &out
	}
	for _, a := range rep.Artifacts {
		info.Artifacts[cmpOr(a.Path, a.Artifact.URL)] = a.URL
	}
	names := make([]string, 0, len(rep.Nodes))
	for name := range rep.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		nr := rep.Nodes[name]
		ni := nodeInfo{Height: nr.Height, Version: nr.Version, Converged: nr.Converged}
		if nr.Err != nil {
			ni.Err = nr.Err.Error()
		}
		info.Nodes[name] = ni
	}
	return info
}

func printReport(rep *upgrade.Report, err error) error {
	if rep != nil {
		if perr := printJSON(reportView(rep)); perr != nil {
			return perr
		}
	}
	return err
}

// releaseArtifacts are the amd64 node and api archives of a GitHub release,
// given as owner/repo@tag.
func releaseArtifacts(release string) (node, api upgrade.Artifact, err error) {
	repo, tag, ok := strings.Cut(release, "@")
	if !ok || repo == "" || tag == "" || !strings.Contains(repo, "/") {
		return node, api, fmt.Errorf("invalid release %q, want owner/repo@tag", release)
	}
	node = upgrade.Artifact{URL: upgrade.ReleaseURL(repo, tag, "inferenced-amd64.zip"), Platform: upgrade.DefaultPlatform}
	api = upgrade.Artifact{URL: upgrade.ReleaseURL(repo, tag, "decentralized-api-amd64.zip"), Platform: upgrade.DefaultPlatform}
	return node, api, nil
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
