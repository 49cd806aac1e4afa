package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBodyBytes = 4 * 1024

// Sender performs one outbound postback HTTP call and reports the response
// code and a truncated body.
type Sender interface {
	Send(ctx context.Context, method, rawURL string) (int, string, error)
}

type httpSender struct {
	client *http.Client
}

// NewHTTPSender returns a Sender with a fixed client timeout; a timed-out
// attempt is treated as failed by the caller.
func NewHTTPSender(timeout time.Duration) Sender {
	return &httpSender{
		client: &http.Client{Timeout: timeout},
	}
}

func (s *httpSender) Send(ctx context.Context, method, rawURL string) (int, string, error) {
	if method != http.MethodGet && method != http.MethodPost {
		return 0, "", fmt.Errorf("%w: unsupported method %q", ErrDelivery, method)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	return resp.StatusCode, string(body), nil
}
