package handler

import (
	"errors"

	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/config"
	"github.com/MKhiriev/go-spirit-connect/internal/handler/http"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/service"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type Handlers struct {
	HTTP *http.Handler
}

// NewHandlers creates the transport handlers enabled by cfg. Without a
// control address it fails with an error recognised by IsNoHandlers.
func NewHandlers(
	services *service.ClientServices,
	serverAdapter adapter.ServerAdapter,
	buildInfo models.AppBuildInfo,
	cfg config.ClientControl,
	logger *logger.Logger,
) (*Handlers, error) {
	logger.Info().Msg("creating new handlers...")

	if cfg.Address == "" {
		return nil, errNoControlAddress
	}

	return &Handlers{
		HTTP: http.NewHandler(services, serverAdapter, buildInfo, logger),
	}, nil
}

// IsNoHandlers reports whether err means no transport was configured.
func IsNoHandlers(err error) bool {
	return errors.Is(err, errNoControlAddress)
}
