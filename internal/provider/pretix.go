package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/infra"
)

// PretixClient reads orders of one event from the pretix REST API.
type PretixClient struct {
	api      apiClient
	eventURL string
	logger   *slog.Logger
}

// NewPretixClient creates a client for the event resource at eventURL, e.g.
// https://pretix.eu/api/v1/organizers/pyladiescon/events/2024. breaker may be nil.
func NewPretixClient(eventURL, token string, timeout time.Duration, breaker *guard.CircuitBreaker, logger *slog.Logger) *PretixClient {
	return &PretixClient{
		api: apiClient{
			service: "pretix",
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

type orderPage struct {
	Count   int            `json:"count"`
	Next    *string        `json:"next"`
	Results []domain.Order `json:"results"`
}

// GetOrder fetches a single order by code. It returns nil and no error if the order
// does not exist.
func (c *PretixClient) GetOrder(ctx context.Context, code string) (*domain.Order, error) {
	var order domain.Order
	u := fmt.Sprintf("%s/orders/%s/", c.eventURL, url.PathEscape(code))
	status, err := c.api.do(ctx, http.MethodGet, u, nil, &order, http.StatusOK)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", code, err)
	}
	return &order, nil
}

// EachOrder pages through every order of the event, following the next cursor until it
// is exhausted, and calls fn for each order. Iteration stops at the first error.
func (c *PretixClient) EachOrder(ctx context.Context, fn func(domain.Order) error) error {
	next := c.eventURL + "/orders/"
	for page := 1; next != ""; page++ {
		c.logger.Debug("fetching pretix orders", "page", page)

		var p orderPage
		if _, err := c.api.do(ctx, http.MethodGet, next, nil, &p, http.StatusOK); err != nil {
			return fmt.Errorf("list orders page %d: %w", page, err)
		}
		for _, o := range p.Results {
			if err := fn(o); err != nil {
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

// ListOrders returns every order of the event.
func (c *PretixClient) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := c.EachOrder(ctx, func(o domain.Order) error {
		orders = append(orders, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// OrderFetcher is the subset of PretixClient used by TicketIndex.
type OrderFetcher interface {
	GetOrder(ctx context.Context, code string) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// TicketIndex answers ticket lookups from a periodically refreshed copy of all orders.
// Orders missing from the copy, e.g. bought after the last refresh, are fetched by code
// and added to it.
type TicketIndex struct {
	mu      sync.RWMutex
	orders  map[string]domain.Order
	fetcher OrderFetcher
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewTicketIndex creates an empty index. metrics may be nil.
func NewTicketIndex(fetcher OrderFetcher, metrics *infra.Metrics, logger *slog.Logger) *TicketIndex {
	return &TicketIndex{
		orders:  make(map[string]domain.Order),
		fetcher: fetcher,
		metrics: metrics,
		logger:  logger,
	}
}

// Refresh replaces the index with a full listing. On error the previous copy is kept.
func (ix *TicketIndex) Refresh(ctx context.Context) error {
	start := time.Now()
	orders, err := ix.fetcher.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("refresh ticket index: %w", err)
	}

	next := make(map[string]domain.Order, len(orders))
	for _, o := range orders {
		next[o.Code] = o
	}

	ix.mu.Lock()
	ix.orders = next
	ix.mu.Unlock()

	if ix.metrics != nil {
		ix.metrics.TicketIndexSize.Set(float64(len(next)))
		ix.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	}
	ix.logger.Info("ticket index refreshed", "orders", len(next), "duration", time.Since(start).String())
	return nil
}

// TicketsFor returns the tickets of orderID whose attendee name equals name exactly.
func (ix *TicketIndex) TicketsFor(ctx context.Context, orderID, name string) ([]domain.Ticket, error) {
	ix.mu.RLock()
	order, ok := ix.orders[orderID]
	ix.mu.RUnlock()

	if ok {
		if tickets := order.TicketsFor(name); len(tickets) > 0 {
			return tickets, nil
		}
	}

	// Not indexed yet, or the attendee name was changed since the last refresh.
	fresh, err := ix.fetcher.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, nil
	}

	ix.mu.Lock()
	ix.orders[fresh.Code] = *fresh
	ix.mu.Unlock()

	return fresh.TicketsFor(name), nil
}

// Len returns the number of indexed orders.
func (ix *TicketIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.orders)
}

// Run refreshes the index every interval until ctx is done. Refresh errors are logged
// and the previous copy stays in use.
func (ix *TicketIndex) Run(ctx context.Context, interval time.Duration) error {
	ix.logger.Info("ticket index refresh starting", "interval", interval.String())

	if err := ix.Refresh(ctx); err != nil {
		ix.logger.Error("ticket index refresh error", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ix.logger.Info("ticket index refresh stopped")
			return nil
		case <-ticker.C:
			if err := ix.Refresh(ctx); err != nil {
				ix.logger.Error("ticket index refresh error", "error", err)
			}
		}
	}
}
