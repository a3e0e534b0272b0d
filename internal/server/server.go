package server

import (
	"context"
	"fmt"
	"net"

	"github.com/MKhiriev/go-spirit-connect/internal/config"
	"github.com/MKhiriev/go-spirit-connect/internal/handler"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
)

type server struct {
	address    string
	httpServer *httpServer
	logger     *logger.Logger
}

func NewServer(handlers *handler.Handlers, cfg config.ClientControl, logger *logger.Logger) (Server, error) {
	logger.Info().Msg("creating new server...")

	if handlers == nil || handlers.HTTP == nil || cfg.Address == "" {
		return nil, errNothingToServe
	}

	return &server{
		address:    cfg.Address,
		httpServer: newHTTPServer(handlers.HTTP.Init(), cfg.Address, logger),
		logger:     logger,
	}, nil
}

func (s *server) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("control API listen on %s: %w", s.address, err)
	}

	served := make(chan error, 1)
	go func() {
		served <- s.httpServer.Serve(l)
	}()

	select {
	case err = <-served:
		return err
	case <-ctx.Done():
	}

	s.Shutdown()
	err = <-served
	s.logger.Info().Msg("server Shutdown gracefully")
	return err
}

func (s *server) Shutdown() {
	s.httpServer.Shutdown()
}
