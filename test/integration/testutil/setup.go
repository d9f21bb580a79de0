//go:build integration

package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pyladiescon/confops/internal/app"
	"github.com/pyladiescon/confops/internal/auth"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/ledger"
	"github.com/pyladiescon/confops/internal/notify"
	"github.com/pyladiescon/confops/internal/policy"
	"github.com/pyladiescon/confops/internal/provider"
	"github.com/pyladiescon/confops/internal/reconcile"
	"github.com/pyladiescon/confops/internal/repository"
	"github.com/pyladiescon/confops/internal/service"
)

const (
	TestJWTSecret          = "integration-test-secret"
	TestInteractionsSecret = "integration-interactions-secret"
	RegLogChannel          = "reglog"
	LogChannel             = "botlog"
	ParticipantRole        = "100000"
	SpeakerRole            = "300000"
	VolunteerRole          = "200000"
)

const testRoles = `
roles:
  participants: "100000"
  volunteers: "200000"
  speakers: "300000"
items:
  "609703": [participants]
  "641803": [participants, speakers]
`

// TestEnv holds all resources for an integration test: the real router over a
// Postgres registration ledger, wired to fake ticketing and chat platforms.
type TestEnv struct {
	Server   *httptest.Server
	Pretix   *FakePretix
	Discord  *FakeDiscord
	Ledger   ledger.Ledger
	JWTMgr   *auth.JWTManager
	Verifier *provider.SignatureVerifier
	Metrics  *infra.Metrics
	t        *testing.T
}

// NewTestEnv creates a test environment backed by the shared Postgres container.
func NewTestEnv(t *testing.T, pretix *FakePretix) *TestEnv {
	t.Helper()

	pool := Postgres(t)
	TruncateLedgers(t, pool)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	discord := NewFakeDiscord(t)
	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)

	roles, err := policy.ParseRoleMapping([]byte(testRoles))
	if err != nil {
		t.Fatalf("parse roles: %v", err)
	}

	breaker := guard.NewCircuitBreaker(5, time.Minute)
	pretixClient := provider.NewPretixClient(pretix.EventURL(), "token", 5*time.Second, breaker, logger)
	discordClient := provider.NewDiscordClient(discord.Server.URL, "bot-token", "guild", 5*time.Second, breaker, logger)
	index := provider.NewTicketIndex(pretixClient, metrics, logger)

	registrations := ledger.NewPostgres(pool, repository.NewLedgerEntryRepository(), ledger.Registrations)
	audit := notify.Multi{notify.NewLogSink(logger), notify.NewChannelSink(discordClient, RegLogChannel)}

	engine := reconcile.NewEngine(reconcile.Deps{
		Tickets:   index,
		Roles:     roles,
		Granter:   discordClient,
		Nicknamer: discordClient,
		Ledger:    registrations,
		Timeout:   5 * time.Second,
		Metrics:   metrics,
		Logger:    logger,
	})
	registrationSvc := service.NewRegistrationService(engine, guard.NewRateLimiter(5, time.Minute), audit, "help", logger)
	oneoff := notify.NewChannelLogger("oneoff", logger, discordClient, LogChannel, slog.LevelInfo)
	volunteerSvc := service.NewVolunteerService(discordClient, VolunteerRole, oneoff, audit, logger)

	jwtMgr := auth.NewJWTManager(TestJWTSecret, time.Hour)
	verifier := provider.NewSignatureVerifier(TestInteractionsSecret, provider.DefaultSignatureTolerance)

	router := app.NewRouter(app.RouterDeps{
		Registration: registrationSvc,
		Volunteers:   volunteerSvc,
		Verifier:     verifier,
		JWTMgr:       jwtMgr,
		Health:       app.StoresHealth(pool, nil),
		Gatherer:     reg,
		Logger:       logger,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestEnv{
		Server:   server,
		Pretix:   pretix,
		Discord:  discord,
		Ledger:   registrations,
		JWTMgr:   jwtMgr,
		Verifier: verifier,
		Metrics:  metrics,
		t:        t,
	}
}

// Register submits a signed registration interaction and decodes the reply.
func (env *TestEnv) Register(userID, orderID, name string) (int, map[string]any) {
	env.t.Helper()
	body, _ := json.Marshal(map[string]any{
		"interaction_id": "i-" + userID,
		"user_id":        userID,
		"guild_id":       "guild",
		"order_id":       orderID,
		"name":           name,
	})
	req, _ := http.NewRequest(http.MethodPost, env.Server.URL+"/interactions/registration", bytes.NewReader(body))
	req.Header.Set(provider.SignatureHeader, env.Verifier.Sign(body, time.Now()))
	return env.do(req)
}

// POST sends a JSON body with an optional operator bearer token.
func (env *TestEnv) POST(path string, body any, token string) (int, map[string]any) {
	env.t.Helper()
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, env.Server.URL+path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return env.do(req)
}

// GET performs an unauthenticated GET and returns the status and raw body.
func (env *TestEnv) GET(path string) (int, string) {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

// OperatorToken mints a token for an operator with role.
func (env *TestEnv) OperatorToken(role string) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(auth.RealmOperator, "itest@example.com", role)
	if err != nil {
		env.t.Fatalf("generate operator token: %v", err)
	}
	return token
}

func (env *TestEnv) do(req *http.Request) (int, map[string]any) {
	env.t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}
