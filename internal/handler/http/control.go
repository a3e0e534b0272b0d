package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MKhiriev/go-spirit-connect/internal/app"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/service"
	"github.com/MKhiriev/go-spirit-connect/internal/utils"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type healthResponse struct {
	Status string `json:"status"`
	Online bool   `json:"online"`
}

func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, healthResponse{
		Status: "ok",
		Online: h.services.SyncService.Online(),
	}, http.StatusOK)
}

// requestSync runs a sync pass for the message in the body. An empty body
// syncs every store.
func (h *Handler) requestSync(w http.ResponseWriter, r *http.Request) {
	msg := models.SyncMessage{Type: models.SyncAll}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, service.ErrInvalidDataProvided)
		return
	}
	if msg.Type == "" {
		msg.Type = models.SyncAll
	}

	report, err := h.services.SyncService.Notify(r.Context(), msg)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, report, http.StatusOK)
}

func (h *Handler) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, h.services.SyncService.Status(), http.StatusOK)
}

// setConnectivity records the connectivity state reported by the caller.
// Coming back online may start a sync pass, which outlives the request.
func (h *Handler) setConnectivity(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, service.ErrInvalidDataProvided)
		return
	}
	if req.Online == nil {
		logger.FromRequest(r).Warn().Msg("connectivity request without online flag")
		utils.WriteJSON(w, errorResponse{Error: app.MsgInvalidConnectivity}, http.StatusBadRequest)
		return
	}

	h.services.SyncService.SetOnline(context.WithoutCancel(r.Context()), *req.Online)

	utils.WriteJSON(w, h.services.SyncService.Status(), http.StatusOK)
}
