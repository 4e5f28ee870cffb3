package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	// maxDocumentBytes bounds how much of a rendered document is read
	maxDocumentBytes   = 16 << 20
	maxRenderRedirects = 5
)

var ErrRenderStatus = errors.New("renderer returned a non-success status")

// StatusError carries the status of a failed render call
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("render %s: status %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRenderStatus
}

// Client calls the rendering service: GET <base>?path=<p>&lang=<locale>
type Client struct {
	baseURL    *url.URL
	locale     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, locale string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid renderer URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("renderer URL %q must use http or https", baseURL)
	}
	return &Client{
		baseURL: u,
		locale:  locale,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRenderRedirects {
					return fmt.Errorf("renderer redirected %d times", len(via))
				}
				return nil
			},
		},
		logger: logger.Named("renderer"),
	}, nil
}

// Render returns the HTML document for path
func (c *Client) Render(ctx context.Context, path string) (string, error) {
	u := *c.baseURL
	q := u.Query()
	q.Set("path", path)
	q.Set("lang", c.locale)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "pagecache-orchestrator/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.logger.Debug("render rejected", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return "", &StatusError{Path: path, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("read render of %s: %w", path, err)
	}
	if len(body) > maxDocumentBytes {
		return "", fmt.Errorf("render of %s exceeds %d bytes", path, maxDocumentBytes)
	}
	return string(body), nil
}
