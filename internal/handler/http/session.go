package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/MKhiriev/go-spirit-connect/internal/app"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/utils"
)

// setSession hands the caller's session token to the server adapter. A JWT
// that has already expired is refused; opaque tokens are accepted as is.
func (h *Handler) setSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	token := tokenFromContext(r.Context())

	expired, err := utils.TokenExpired(token, time.Now(), 0)
	switch {
	case errors.Is(err, utils.ErrInvalidToken):
		log.Debug().Msg("session token is not a JWT, skipping expiry check")
	case err != nil:
		writeError(w, r, err)
		return
	case expired:
		log.Warn().Msg("refusing expired session token")
		utils.WriteJSON(w, errorResponse{Error: app.MsgSessionExpired}, http.StatusUnauthorized)
		return
	}

	if userID, err := utils.TokenSubject(token); err == nil {
		log.Info().Str("user_id", userID).Msg("session token updated")
	}

	h.adapter.SetToken(token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dropSession(w http.ResponseWriter, r *http.Request) {
	h.adapter.SetToken("")
	logger.FromRequest(r).Info().Msg("session token dropped")
	w.WriteHeader(http.StatusNoContent)
}
