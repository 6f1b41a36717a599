package chain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Restarter stops and restarts the process behind one node.
type Restarter interface {
	Restart(ctx context.Context) error
}

type NoRestarter struct{}

func (NoRestarter) Restart(context.Context) error {
	return ErrRestartUnsupported
}

// HTTPRestarter asks a per-node supervisor to restart the node with an empty POST.
type HTTPRestarter struct {
	URL    string
	Client *http.Client
}

func NewHTTPRestarter(url string) *HTTPRestarter {
	return &HTTPRestarter{URL: url, Client: http.DefaultClient}
}

func (r *HTTPRestarter) Restart(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, http.NoBody)
	if err != nil {
		return err
	}
	res, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("restart via %s: %w", r.URL, err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("restart via %s: status %d: %s", r.URL, res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
