package http

import (
	"github.com/MKhiriev/go-spirit-connect/internal/adapter"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/service"
	"github.com/MKhiriev/go-spirit-connect/models"
)

type Handler struct {
	services  *service.ClientServices
	adapter   adapter.ServerAdapter
	buildInfo models.AppBuildInfo

	logger *logger.Logger
}

func NewHandler(services *service.ClientServices, serverAdapter adapter.ServerAdapter, buildInfo models.AppBuildInfo, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		services:  services,
		adapter:   serverAdapter,
		buildInfo: buildInfo,
		logger:    logger,
	}
}
