package main

import (
	"fmt"

	"github.com/MKhiriev/go-spirit-connect/internal/client"
	"github.com/MKhiriev/go-spirit-connect/internal/config"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
	"github.com/MKhiriev/go-spirit-connect/models"
)

const serviceName = "spirit-connect-agent"

// Set with -ldflags "-X main.buildVersion=...".
var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildInfo := models.NewAppBuildInfo(buildVersion, buildDate, buildCommit)

	cfg, err := config.GetClientConfig()
	if err != nil {
		logger.NewLogger(serviceName).Fatal().Err(err).Msg("error getting configs")
	}
	buildInfo = buildInfo.WithFallbackVersion(cfg.App.Version)
	fmt.Printf("%s %s\n", serviceName, buildInfo)

	log := logger.NewClientLogger(serviceName, cfg.App.LogFile)

	var app client.Runner
	app, err = client.NewApp(cfg, buildInfo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init client app error")
	}

	if err = app.Run(); err != nil {
		log.Fatal().Err(err).Msg("client run error")
	}
}
