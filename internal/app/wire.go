package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pyladiescon/confops/internal/auth"
	"github.com/pyladiescon/confops/internal/handler"
	"github.com/pyladiescon/confops/internal/provider"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Registration handler.SubmissionHandler
	Volunteers   handler.VolunteerAssigner
	// Game is optional; its routes are mounted only when set.
	Game handler.GamePlayer
	Verifier     *provider.SignatureVerifier
	JWTMgr       *auth.JWTManager
	Health       map[string]handler.HealthCheck
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer   prometheus.Gatherer
	CORSOrigin string
	Logger     *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger

	interactionHandler := handler.NewInteractionHandler(deps.Registration, deps.Verifier, logger)
	operatorHandler := handler.NewOperatorHandler(deps.Volunteers, logger)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	origin := deps.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(origin))

	// Prometheus exposition sets its own content type.
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Get("/health", handler.HealthHandler(deps.Health))

		// Signed by the chat adapter; raw body is verified before decoding.
		r.Post("/interactions/registration", interactionHandler.HandleRegistration)

		if deps.Game != nil {
			gameHandler := handler.NewGameHandler(deps.Game, deps.Verifier, logger)
			r.Route("/interactions/game", func(r chi.Router) {
				r.Post("/question", gameHandler.HandleQuestion)
				r.Post("/answer", gameHandler.HandleAnswer)
				r.Post("/score", gameHandler.HandleScore)
			})
		}

		r.Route("/operator", func(r chi.Router) {
			r.Use(auth.AuthenticateOperator(deps.JWTMgr))
			r.With(auth.RequireRole(auth.WriteRoles()...)).Post("/volunteers", operatorHandler.AssignVolunteer)
		})
	})

	return r
}
