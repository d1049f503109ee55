package gateway

import (
	"log/slog"
	"net/http"
	"time"
)

type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		slog.Debug("http_request",
			slog.String("method", req.Method),
			slog.String("url", req.URL.Path),
			slog.String("request_id", req.Header.Get("X-Request-ID")),
			slog.String("duration", time.Since(start).String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	slog.Debug("http_request",
		slog.String("method", req.Method),
		slog.String("url", req.URL.Path),
		slog.String("request_id", req.Header.Get("X-Request-ID")),
		slog.Int("status", resp.StatusCode),
		slog.Int64("response_size", resp.ContentLength),
		slog.String("duration", time.Since(start).String()),
	)
	return resp, nil
}
