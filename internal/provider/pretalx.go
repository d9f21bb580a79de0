package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
)

// PretalxClient reads sessions of one event from the pretalx REST API.
type PretalxClient struct {
	api      apiClient
	eventURL string
	logger   *slog.Logger
}

// NewPretalxClient creates a client for the event resource at eventURL, e.g.
// https://pretalx.com/api/events/pyladiescon-2024. breaker may be nil.
func NewPretalxClient(eventURL, token string, timeout time.Duration, breaker *guard.CircuitBreaker, logger *slog.Logger) *PretalxClient {
	return &PretalxClient{
		api: apiClient{
			service: "pretalx",
			client:  &http.Client{Timeout: timeout},
			breaker: breaker,
			auth: func(req *http.Request) {
				req.Header.Set("Authorization", "Token "+token)
			},
		},
		eventURL: strings.TrimRight(eventURL, "/"),
		logger:   logger,
	}
}

type submissionPage struct {
	Next    *string             `json:"next"`
	Results []domain.Submission `json:"results"`
}

// EachSubmission pages through the event's submissions in state (all states when
// empty), following the next cursor, and calls fn for each one.
func (c *PretalxClient) EachSubmission(ctx context.Context, state string, fn func(domain.Submission) error) error {
	next := c.eventURL + "/submissions/"
	if state != "" {
		next += "?" + url.Values{"state": {state}}.Encode()
	}
	for page := 1; next != ""; page++ {
		c.logger.Debug("fetching pretalx submissions", "page", page)

		var p submissionPage
		if _, err := c.api.do(ctx, http.MethodGet, next, nil, &p, http.StatusOK); err != nil {
			return fmt.Errorf("list submissions page %d: %w", page, err)
		}
		for _, s := range p.Results {
			if err := fn(s); err != nil {
				return err
			}
		}

		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}
	return nil
}
