package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/you-humble/jobclient/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	pathUploadFolder = "/upload_folder"
	pathGetSheets    = "/get_sheets"
	pathSplit        = "/split"
	pathSendEmails   = "/send_emails"
	pathCheckStatus  = "/check_status/"
	pathDownloadLog  = "/download_log/"

	maxJSONBody = 1 << 20
	maxTextBody = 64 << 10
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	// Transport overrides http.DefaultTransport, mostly for tests.
	Transport http.RoundTripper
}

type Gateway struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) (*Gateway, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", cfg.BaseURL)
	}

	rt := cfg.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	g := &Gateway{
		base: base,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &loggingTransport{next: rt},
		},
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return g, nil
}

func (g *Gateway) endpoint(path string) string {
	u := *g.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// do sends req and maps every failure to reach the server onto
// domain.ErrTransport.
func (g *Gateway) do(req *http.Request) (*http.Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(req.Context()); err != nil {
			// client.Do never runs, so the body is ours to close.
			if req.Body != nil {
				_ = req.Body.Close()
			}
			return nil, transportErr(err)
		}
	}

	req.Header.Set("X-Request-ID", uuid.NewString())
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, transportErr(err)
	}
	return resp, nil
}

func (g *Gateway) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(path), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return g.do(req)
}

func (g *Gateway) postMultipart(ctx context.Context, path string, body *multipartBody) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(path), body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", body.ContentType())
	return g.do(req)
}

func transportErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrTransport, err)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func decodeJSON(resp *http.Response, v any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return transportErr(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s response: %w", resp.Request.URL.Path, err)
	}
	return nil
}

func readText(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTextBody))
	if err != nil {
		slog.Warn("read error body", slog.String("error", err.Error()))
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return msg
}

// drain lets the connection be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTextBody))
	_ = resp.Body.Close()
}

func attachmentName(resp *http.Response, fallback string) string {
	cd := resp.Header.Get("Content-Disposition")
	if cd == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return fallback
	}
	if name := params["filename"]; name != "" {
		return name
	}
	return fallback
}

func isTransport(err error) bool {
	return errors.Is(err, domain.ErrTransport)
}
