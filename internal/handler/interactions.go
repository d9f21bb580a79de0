package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/provider"
)

// SubmissionHandler turns a registration form submission into a reply.
// *service.RegistrationService satisfies it.
type SubmissionHandler interface {
	HandleSubmission(ctx context.Context, ev domain.RegistrationSubmitted) domain.Reply
}

// InteractionHandler receives signed interaction events from the chat adapter.
type InteractionHandler struct {
	registration SubmissionHandler
	verifier     *provider.SignatureVerifier
	logger       *slog.Logger
}

// NewInteractionHandler creates an InteractionHandler. A verifier without a secret
// accepts unsigned payloads.
func NewInteractionHandler(registration SubmissionHandler, verifier *provider.SignatureVerifier, logger *slog.Logger) *InteractionHandler {
	return &InteractionHandler{registration: registration, verifier: verifier, logger: logger}
}

// HandleRegistration handles POST /interactions/registration.
func (h *InteractionHandler) HandleRegistration(w http.ResponseWriter, r *http.Request) {
	body, ok := readSigned(w, r, h.verifier, h.logger)
	if !ok {
		return
	}

	var ev domain.RegistrationSubmitted
	if err := json.Unmarshal(body, &ev); err != nil {
		RespondError(w, domain.ErrValidation("invalid registration payload"))
		return
	}
	if err := domain.ValidateSnowflake(ev.UserID); err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return
	}

	reply := h.registration.HandleSubmission(r.Context(), ev)
	RespondJSON(w, http.StatusOK, reply)
}

// readSigned reads the raw body, which signature verification needs, and checks its
// signature when verifier has a secret. It writes the error response and returns false
// on failure.
func readSigned(w http.ResponseWriter, r *http.Request, verifier *provider.SignatureVerifier, logger *slog.Logger) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		logger.Error("read interaction body", "error", err)
		RespondError(w, domain.ErrValidation("unreadable body"))
		return nil, false
	}
	if len(body) > maxBodyBytes {
		RespondError(w, domain.ErrValidation("body too large"))
		return nil, false
	}

	if verifier != nil && verifier.Enabled() {
		if err := verifier.Verify(body, r.Header.Get(provider.SignatureHeader)); err != nil {
			logger.Warn("interaction signature rejected", "error", err, "request_id", GetRequestID(r.Context()))
			RespondError(w, domain.ErrUnauthorized(signatureMessage(err)))
			return nil, false
		}
	}
	return body, true
}

func signatureMessage(err error) string {
	switch {
	case errors.Is(err, provider.ErrSignatureExpired):
		return "signature expired"
	case errors.Is(err, provider.ErrSignatureMissing):
		return "signature missing"
	default:
		return "invalid signature"
	}
}
