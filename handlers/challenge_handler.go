package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/smashpoint/league-system/middleware"
	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/services"
)

type ChallengeHandler struct {
	challengeService services.ChallengeService
}

func NewChallengeHandler(challengeService services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	challengerID, err := middleware.PlayerIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.CreateChallengeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.OpponentID <= 0 {
		badRequestResponse(w, r, errors.New("opponent_id is required"))
		return
	}

	challenge, err := h.challengeService.Create(r.Context(), challengerID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"challenge": challenge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChallengeHandler) GetByToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		badRequestResponse(w, r, errors.New("token query parameter is required"))
		return
	}
	challenge, err := h.challengeService.GetByToken(r.Context(), token)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"challenge": challenge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMine returns the authenticated player's challenges on either side
// of the table, optionally filtered by status.
func (h *ChallengeHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	playerID, err := middleware.PlayerIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var status *models.ChallengeStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.ChallengeStatus(raw)
		status = &s
	}
	limit, err := queryInt(r, "limit", "20")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", "0")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	challenges, err := h.challengeService.ListForPlayer(r.Context(), playerID, status, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"challenges": challenges}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChallengeHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, h.challengeService.Accept)
}

func (h *ChallengeHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.answer(w, r, h.challengeService.Decline)
}

func (h *ChallengeHandler) answer(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, challengeID, playerID int) (*models.Challenge, error)) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := middleware.PlayerIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	challenge, err := op(r.Context(), id, playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"challenge": challenge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChallengeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	reporterID, err := middleware.PlayerIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.ChallengeResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	challenge, err := h.challengeService.Complete(r.Context(), id, reporterID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"challenge": challenge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
