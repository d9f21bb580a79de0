package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const eventPath = "/api/v1/organizers/pyladiescon/events/2024"

// pretixServer serves two pages of orders and single orders by code.
func pretixServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc(eventPath+"/orders/", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.Header.Get("Authorization") != "Token secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		code := r.URL.Path[len(eventPath+"/orders/"):]
		if code != "" {
			code = code[:len(code)-1]
			if code != "ABC12" {
				http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(domain.Order{
				Code: "ABC12",
				Positions: []domain.Position{
					{PositionID: 1, Item: 609703, AttendeeName: "Jane Doe"},
				},
			})
			return
		}

		switch r.URL.Query().Get("page") {
		case "":
			next := fmt.Sprintf("%s%s/orders/?page=2", srv.URL, eventPath)
			fmt.Fprintf(w, `{"count":2,"next":%q,"results":[{"code":"ABC12","positions":[{"positionid":1,"item":609703,"attendee_name":"Jane Doe"}]}]}`, next)
		case "2":
			fmt.Fprint(w, `{"count":2,"next":null,"results":[{"code":"XYZ99","testmode":true,"positions":[{"positionid":1,"item":641803,"variation":77,"attendee_name":"John Roe"}]}]}`)
		}
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// --- PretixClient Tests ---

func TestPretixClient_ListOrdersFollowsNext(t *testing.T) {
	srv := pretixServer(t, nil)
	c := NewPretixClient(srv.URL+eventPath, "secret-token", time.Second, nil, discardLogger())

	orders, err := c.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ABC12", orders[0].Code)
	assert.Equal(t, "XYZ99", orders[1].Code)
	assert.True(t, orders[1].TestMode)
	require.NotNil(t, orders[1].Positions[0].Variation)
	assert.Equal(t, int64(77), *orders[1].Positions[0].Variation)
}

func TestPretixClient_GetOrder(t *testing.T) {
	srv := pretixServer(t, nil)
	c := NewPretixClient(srv.URL+eventPath+"/", "secret-token", time.Second, nil, discardLogger())

	order, err := c.GetOrder(context.Background(), "ABC12")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "Jane Doe", order.Positions[0].AttendeeName)

	t.Run("unknown order", func(t *testing.T) {
		order, err := c.GetOrder(context.Background(), "NOPE1")
		require.NoError(t, err)
		assert.Nil(t, order)
	})
}

func TestPretixClient_Unauthorized(t *testing.T) {
	srv := pretixServer(t, nil)
	c := NewPretixClient(srv.URL+eventPath, "wrong", time.Second, nil, discardLogger())

	_, err := c.ListOrders(context.Background())
	require.Error(t, err)

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.Status)
}

func TestPretixClient_CircuitBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := guard.NewCircuitBreaker(2, time.Minute)
	c := NewPretixClient(srv.URL, "t", time.Second, breaker, discardLogger())
	ctx := context.Background()

	_, err := c.ListOrders(ctx)
	require.Error(t, err)
	_, err = c.ListOrders(ctx)
	require.Error(t, err)
	_, err = c.ListOrders(ctx)
	assert.ErrorIs(t, err, guard.ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

// --- TicketIndex Tests ---

func TestTicketIndex_RefreshAndLookup(t *testing.T) {
	var hits int32
	srv := pretixServer(t, &hits)
	metrics := infra.NewMetrics(prometheus.NewRegistry())
	ix := NewTicketIndex(NewPretixClient(srv.URL+eventPath, "secret-token", time.Second, nil, discardLogger()), metrics, discardLogger())
	ctx := context.Background()

	require.NoError(t, ix.Refresh(ctx))
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.TicketIndexSize))
	afterRefresh := atomic.LoadInt32(&hits)

	tickets, err := ix.TicketsFor(ctx, "XYZ99", "John Roe")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "XYZ99-1", tickets[0].Identity())
	assert.Equal(t, "641803", tickets[0].ItemType)
	assert.Equal(t, "77", tickets[0].Variation)
	assert.Equal(t, afterRefresh, atomic.LoadInt32(&hits), "indexed lookup must not hit the api")
}

func TestTicketIndex_FallsBackToPointLookup(t *testing.T) {
	srv := pretixServer(t, nil)
	ix := NewTicketIndex(NewPretixClient(srv.URL+eventPath, "secret-token", time.Second, nil, discardLogger()), nil, discardLogger())
	ctx := context.Background()

	tickets, err := ix.TicketsFor(ctx, "ABC12", "Jane Doe")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, 1, ix.Len())

	t.Run("unknown order yields no tickets", func(t *testing.T) {
		tickets, err := ix.TicketsFor(ctx, "NOPE1", "Jane Doe")
		require.NoError(t, err)
		assert.Empty(t, tickets)
	})

	t.Run("name is matched exactly", func(t *testing.T) {
		tickets, err := ix.TicketsFor(ctx, "ABC12", "jane doe")
		require.NoError(t, err)
		assert.Empty(t, tickets)
	})
}

type failingFetcher struct{}

func (failingFetcher) GetOrder(context.Context, string) (*domain.Order, error) {
	return nil, fmt.Errorf("pretix down")
}

func (failingFetcher) ListOrders(context.Context) ([]domain.Order, error) {
	return nil, fmt.Errorf("pretix down")
}

func TestTicketIndex_RefreshErrorKeepsPrevious(t *testing.T) {
	srv := pretixServer(t, nil)
	ix := NewTicketIndex(NewPretixClient(srv.URL+eventPath, "secret-token", time.Second, nil, discardLogger()), nil, discardLogger())
	require.NoError(t, ix.Refresh(context.Background()))

	ix.fetcher = failingFetcher{}
	require.Error(t, ix.Refresh(context.Background()))
	assert.Equal(t, 2, ix.Len())

	_, err := ix.TicketsFor(context.Background(), "NOPE1", "Jane Doe")
	assert.Error(t, err)
}

func TestTicketIndex_RunStopsOnCancel(t *testing.T) {
	srv := pretixServer(t, nil)
	ix := NewTicketIndex(NewPretixClient(srv.URL+eventPath, "secret-token", time.Second, nil, discardLogger()), nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ix.Run(ctx, time.Hour) }()

	require.Eventually(t, func() bool { return ix.Len() == 2 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
