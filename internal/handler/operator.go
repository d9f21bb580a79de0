package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pyladiescon/confops/internal/auth"
	"github.com/pyladiescon/confops/internal/domain"
)

// VolunteerAssigner grants the volunteer role. *service.VolunteerService satisfies it.
type VolunteerAssigner interface {
	AssignVolunteer(ctx context.Context, userID string) error
}

// OperatorHandler serves one-off organizer actions.
type OperatorHandler struct {
	volunteers VolunteerAssigner
	logger     *slog.Logger
}

// NewOperatorHandler creates an OperatorHandler.
func NewOperatorHandler(volunteers VolunteerAssigner, logger *slog.Logger) *OperatorHandler {
	return &OperatorHandler{volunteers: volunteers, logger: logger}
}

type assignVolunteerRequest struct {
	UserID string `json:"user_id"`
}

// AssignVolunteer handles POST /operator/volunteers.
func (h *OperatorHandler) AssignVolunteer(w http.ResponseWriter, r *http.Request) {
	var req assignVolunteerRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	if err := h.volunteers.AssignVolunteer(r.Context(), req.UserID); err != nil {
		h.logger.Error("assign volunteer", "user_id", req.UserID, "operator", auth.SubjectFromContext(r.Context()), "error", err)
		RespondError(w, err)
		return
	}

	h.logger.Info("volunteer assigned", "user_id", req.UserID, "operator", auth.SubjectFromContext(r.Context()))
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "assigned",
		"user_id": req.UserID,
	})
}
