package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-spirit-connect/internal/app"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/service"
	"github.com/MKhiriev/go-spirit-connect/internal/utils"
)

var errorStatusMap = map[error]int{
	service.ErrOffline:                 http.StatusServiceUnavailable,
	service.ErrUnknownMessage:          http.StatusBadRequest,
	service.ErrInvalidDataProvided:     http.StatusBadRequest,
	service.ErrUnroutableStore:         http.StatusBadRequest,
	service.ErrNoUserID:                http.StatusBadRequest,
	service.ErrSyncAborted:             http.StatusUnauthorized,
	service.ErrTokenIsExpired:          http.StatusUnauthorized,
	service.ErrTokenIsExpiredOrInvalid: http.StatusUnauthorized,
	service.ErrRemoteNotFound:          http.StatusNotFound,
}

var errorMessageMap = map[error]string{
	service.ErrOffline:                 app.MsgOffline,
	service.ErrUnknownMessage:          app.MsgUnknownSyncMessage,
	service.ErrInvalidDataProvided:     app.MsgInvalidDataProvided,
	service.ErrSyncAborted:             app.MsgSessionExpired,
	service.ErrTokenIsExpired:          app.MsgSessionExpired,
	service.ErrTokenIsExpiredOrInvalid: app.MsgSessionExpired,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// messageFromError returns the text shown to the caller. Unmapped client
// errors keep their own text; unmapped server errors are hidden.
func messageFromError(err error, status int) string {
	for target, msg := range errorMessageMap {
		if errors.Is(err, target) {
			return msg
		}
	}
	if status >= http.StatusInternalServerError {
		return app.MsgInternalServerError
	}
	return err.Error()
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	logger.FromRequest(r).Err(err).Int("status", status).Msg("request failed")
	utils.WriteJSON(w, errorResponse{Error: messageFromError(err, status)}, status)
}
