//go:build integration

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pyladiescon/confops/internal/domain"
)

// FakePretix serves the order endpoints of one event.
type FakePretix struct {
	Server *httptest.Server

	mu     sync.Mutex
	orders map[string]domain.Order
}

// NewFakePretix starts a server holding orders, keyed by code.
func NewFakePretix(t *testing.T, orders ...domain.Order) *FakePretix {
	t.Helper()
	f := &FakePretix{orders: map[string]domain.Order{}}
	for _, o := range orders {
		f.orders[o.Code] = o
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/organizers/pyladiescon/events/2024/orders/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		results := make([]domain.Order, 0, len(f.orders))
		for _, o := range f.orders {
			results = append(results, o)
		}
		json.NewEncoder(w).Encode(map[string]any{"count": len(results), "next": nil, "results": results})
	})
	mux.HandleFunc("GET /api/v1/organizers/pyladiescon/events/2024/orders/{code}/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		o, ok := f.orders[r.PathValue("code")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(o)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// EventURL is the base URL the pretix client is configured with.
func (f *FakePretix) EventURL() string {
	return f.Server.URL + "/api/v1/organizers/pyladiescon/events/2024"
}

// FakeDiscord records role grants, nickname changes and channel messages.
type FakeDiscord struct {
	Server *httptest.Server

	mu       sync.Mutex
	roles    map[string][]string
	nicks    map[string]string
	messages map[string][]string
	// Forbidden makes member updates for these users return 403.
	Forbidden map[string]bool
}

// NewFakeDiscord starts a fake chat API for guild "guild".
func NewFakeDiscord(t *testing.T) *FakeDiscord {
	t.Helper()
	f := &FakeDiscord{
		roles:     map[string][]string{},
		nicks:     map[string]string{},
		messages:  map[string][]string{},
		Forbidden: map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /guilds/guild/members/{user}/roles/{role}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		user := r.PathValue("user")
		if f.Forbidden[user] {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		f.roles[user] = append(f.roles[user], r.PathValue("role"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("PATCH /guilds/guild/members/{user}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		user := r.PathValue("user")
		if f.Forbidden[user] {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"Missing Permissions","code":50013}`))
			return
		}
		var body struct {
			Nick string `json:"nick"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.nicks[user] = body.Nick
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /channels/{channel}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body struct {
			Content string `json:"content"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		ch := r.PathValue("channel")
		f.messages[ch] = append(f.messages[ch], body.Content)
		json.NewEncoder(w).Encode(map[string]string{"id": "m" + strings.Repeat("1", len(f.messages[ch]))})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Roles returns the role ids granted to user.
func (f *FakeDiscord) Roles(user string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.roles[user]...)
}

// Nick returns the nickname set for user.
func (f *FakeDiscord) Nick(user string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nicks[user]
}

// Messages returns the messages posted to channel.
func (f *FakeDiscord) Messages(channel string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages[channel]...)
}
