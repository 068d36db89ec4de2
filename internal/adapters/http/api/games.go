package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	repository "github.com/okian/ratings/internal/adapters/repository"
	service "github.com/okian/ratings/internal/app"
	"github.com/okian/ratings/internal/domain/model"
)

// maxGameBody caps POST /games payloads.
const maxGameBody = 1 << 16

// gameRequest is the POST /games body. Score is from player_a's side.
type gameRequest struct {
	GameID   string   `json:"game_id"`
	PlayerA  string   `json:"player_a"`
	PlayerB  string   `json:"player_b"`
	Score    *float64 `json:"score"`
	Weight   *float64 `json:"weight"`
	PlayedAt string   `json:"played_at"`
}

func (g gameRequest) toModel() (model.GameResult, error) {
	switch {
	case strings.TrimSpace(g.PlayerA) == "":
		return model.GameResult{}, errors.New("missing player_a")
	case strings.TrimSpace(g.PlayerB) == "":
		return model.GameResult{}, errors.New("missing player_b")
	case g.Score == nil:
		return model.GameResult{}, errors.New("missing score")
	case strings.TrimSpace(g.PlayedAt) == "":
		return model.GameResult{}, errors.New("missing played_at")
	}
	at, err := time.Parse(time.RFC3339, g.PlayedAt)
	if err != nil {
		return model.GameResult{}, errors.New("invalid played_at; must be RFC3339")
	}
	weight := 1.0
	if g.Weight != nil {
		weight = *g.Weight
	}
	return model.GameResult{
		GameID:   g.GameID,
		PlayerA:  g.PlayerA,
		PlayerB:  g.PlayerB,
		Score:    *g.Score,
		Weight:   weight,
		PlayedAt: at,
	}, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	GameID    string `json:"game_id"`
	Duplicate bool   `json:"duplicate"`
}

// GamesHandler handles game submissions.
type GamesHandler struct {
	deps GameDependencies
}

// NewGamesHandler creates a new games handler.
func NewGamesHandler(deps GameDependencies) *GamesHandler {
	return &GamesHandler{deps: deps}
}

// HandlePostGame handles POST /games requests.
func (h *GamesHandler) HandlePostGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req gameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGameBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	g, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	id, err := h.deps.SubmitGame(r.Context(), g)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", GameID: id})
	case errors.Is(err, service.ErrDuplicateGame):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", GameID: id, Duplicate: true})
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
	case errors.Is(err, repository.ErrInvalidGame):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
