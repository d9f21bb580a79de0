package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/game"
	"github.com/pyladiescon/confops/internal/provider"
)

// GamePlayer runs the trivia game. *game.Game satisfies it.
type GamePlayer interface {
	Ask(userID string) (game.Question, error)
	Answer(userID, choice string) (game.Result, error)
	Score(userID string) (game.ScoreCard, bool)
}

// GameHandler serves the trivia game buttons relayed by the chat adapter.
type GameHandler struct {
	game     GamePlayer
	verifier *provider.SignatureVerifier
	logger   *slog.Logger
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(g GamePlayer, verifier *provider.SignatureVerifier, logger *slog.Logger) *GameHandler {
	return &GameHandler{game: g, verifier: verifier, logger: logger}
}

type gameRequest struct {
	UserID string `json:"user_id"`
	Choice string `json:"choice,omitempty"`
}

type scoreResponse struct {
	Found   bool            `json:"found"`
	Score   *game.ScoreCard `json:"score,omitempty"`
	Message string          `json:"message,omitempty"`
}

// HandleQuestion handles POST /interactions/game/question.
func (h *GameHandler) HandleQuestion(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	q, err := h.game.Ask(req.UserID)
	if errors.Is(err, game.ErrAllSeen) {
		RespondError(w, domain.ErrConflict("you have guessed every chapter"))
		return
	}
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, q)
}

// HandleAnswer handles POST /interactions/game/answer.
func (h *GameHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.game.Answer(req.UserID, req.Choice)
	if errors.Is(err, game.ErrUnknownOption) {
		RespondError(w, domain.ErrValidation("choice was not offered"))
		return
	}
	if err != nil {
		RespondError(w, err)
		return
	}
	h.logger.Debug("game answer", "user_id", req.UserID, "outcome", res.Outcome)
	RespondJSON(w, http.StatusOK, res)
}

// HandleScore handles POST /interactions/game/score.
func (h *GameHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	card, found := h.game.Score(req.UserID)
	if !found {
		RespondJSON(w, http.StatusOK, scoreResponse{Message: "There is no registry of your score. Start playing in the game channel!"})
		return
	}
	RespondJSON(w, http.StatusOK, scoreResponse{Found: true, Score: &card})
}

func (h *GameHandler) decode(w http.ResponseWriter, r *http.Request) (gameRequest, bool) {
	body, ok := readSigned(w, r, h.verifier, h.logger)
	if !ok {
		return gameRequest{}, false
	}

	var req gameRequest
	if err := json.Unmarshal(body, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid game payload"))
		return gameRequest{}, false
	}
	if err := domain.ValidateSnowflake(req.UserID); err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return gameRequest{}, false
	}
	return req, true
}
