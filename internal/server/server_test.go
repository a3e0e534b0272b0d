package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-spirit-connect/internal/config"
	"github.com/MKhiriev/go-spirit-connect/internal/handler"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/internal/service"
	"github.com/MKhiriev/go-spirit-connect/models"
)

func newHandlers(t *testing.T, address string) *handler.Handlers {
	t.Helper()
	h, err := handler.NewHandlers(&service.ClientServices{}, nil, models.AppBuildInfo{},
		config.ClientControl{Address: address}, logger.Nop())
	require.NoError(t, err)
	return h
}

func TestNewServer_NothingToServe(t *testing.T) {
	_, err := NewServer(nil, config.ClientControl{Address: "127.0.0.1:0"}, logger.Nop())
	assert.ErrorIs(t, err, errNothingToServe)

	_, err = NewServer(newHandlers(t, "127.0.0.1:0"), config.ClientControl{}, logger.Nop())
	assert.ErrorIs(t, err, errNothingToServe)
	assert.True(t, IsDisabled(err))
	assert.False(t, IsDisabled(assert.AnError))
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv, err := NewServer(newHandlers(t, "127.0.0.1:0"), config.ClientControl{Address: "127.0.0.1:0"}, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ListenFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	address := busy.Addr().String()
	srv, err := NewServer(newHandlers(t, address), config.ClientControl{Address: address}, logger.Nop())
	require.NoError(t, err)

	err = srv.Run(context.Background())
	assert.Error(t, err)
}
