package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/jwtauth"
	"github.com/shlokmonster/wingames/internal/matchsvc/match"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	board     *match.Board
}

func NewHandler(board *match.Board) *Handler {
	return &Handler{board: board}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "match service is running at port " + os.Getenv("MATCH_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}

// OpenBattlesHandler serves the same snapshot as the open-battles-update
// event, for clients that poll over plain HTTP.
func (h *Handler) OpenBattlesHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Code: 200,
		Data: match.BattleViews(h.board.ListOpen()),
	})
}

func (h *Handler) RunningBattlesHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Code: 200,
		Data: match.BattleViews(h.board.ListRunning()),
	})
}
