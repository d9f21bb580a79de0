package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pyladiescon/confops/internal/guard"
)

// maxErrorBody bounds how much of an upstream error response is kept in the error text.
const maxErrorBody = 512

// StatusError is returned when an upstream answers with an unexpected status code.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.Status, e.Body)
}

// apiClient is the transport shared by the upstream clients.
type apiClient struct {
	service string
	client  *http.Client
	breaker *guard.CircuitBreaker
	auth    func(req *http.Request)
}

// do sends a request with an optional JSON body. When out is non-nil and the status is
// one of ok, the response body is decoded into it. Unexpected statuses yield *StatusError.
// Client errors (4xx) do not trip the circuit breaker.
func (c *apiClient) do(ctx context.Context, method, url string, in, out interface{}, ok ...int) (int, error) {
	if c.breaker != nil {
		if res := c.breaker.Check(ctx, c.service); !res.Allowed {
			return 0, fmt.Errorf("%s: %w: %s", c.service, guard.ErrCircuitOpen, res.Reason)
		}
	}

	status, err := c.send(ctx, method, url, in, out, ok)

	if c.breaker != nil {
		switch {
		case err == nil, status >= 400 && status < 500:
			c.breaker.RecordSuccess(c.service)
		case errors.Is(err, context.Canceled):
			c.breaker.Release(c.service)
		default:
			c.breaker.RecordFailure(c.service)
		}
	}
	return status, err
}

func (c *apiClient) send(ctx context.Context, method, url string, in, out interface{}, ok []int) (int, error) {
	if len(ok) == 0 {
		ok = []int{http.StatusOK}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode %s request: %w", c.service, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s api call: %w", c.service, err)
	}
	defer resp.Body.Close()

	for _, code := range ok {
		if resp.StatusCode != code {
			continue
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", c.service, err)
		}
		return resp.StatusCode, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, &StatusError{
		Service: c.service,
		Status:  resp.StatusCode,
		Body:    string(bytes.TrimSpace(raw)),
	}
}
