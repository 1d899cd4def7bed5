package main

import (
	"context"
	"os"

	"github.com/diwise/context-broker/pkg/ngsild/client"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"

	"github.com/diwise/integration-sensordata/internal/pkg/application"
	"github.com/diwise/integration-sensordata/internal/pkg/infrastructure/metrics"
	"github.com/diwise/integration-sensordata/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/integration-sensordata/internal/pkg/infrastructure/router"
)

const serviceName string = "integration-sensordata"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	port := env.GetVariableOrDefault(logger, "SERVICE_PORT", "8080")
	persist := env.GetVariableOrDefault(logger, "PERSIST_READINGS", "false") == "true"
	deviceID := env.GetVariableOrDefault(logger, "DEVICE_ID", "sensordata")
	contextBrokerUrl := env.GetVariableOrDefault(logger, "CONTEXT_BROKER_URL", "")
	lwm2mEndpoint := env.GetVariableOrDefault(logger, "LWM2M_ENDPOINT", "")
	readingsLogFile := env.GetVariableOrDefault(logger, "READINGS_LOG_FILE", "")

	store, err := database.Connect(ctx, logger, database.LoadConfiguration(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	cfg := application.Config{
		PersistReadings: persist,
		DeviceID:        deviceID,
		LwM2MEndpoint:   lwm2mEndpoint,
	}

	if contextBrokerUrl != "" {
		cfg.ContextBroker = client.NewContextBrokerClient(contextBrokerUrl)
	}

	m := metrics.New()
	app := application.New(ctx, store, cfg, m)

	readingsLog, closeLog := newReadingsLogger(logger, readingsLogFile)
	defer closeLog()

	r := router.SetupRouter(chi.NewRouter(), readingsLog, app, m)

	err = r.Start(port)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start router")
	}
}

// newReadingsLogger returns the logger used for reading log lines. When path is
// set the lines are appended to that file as well as the service log.
func newReadingsLogger(logger zerolog.Logger, path string) (zerolog.Logger, func()) {
	if path == "" {
		return logger, func() {}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logger.Fatal().Err(err).Str("path", path).Msg("failed to open readings log file")
	}

	w := zerolog.MultiLevelWriter(os.Stdout, f)
	readingsLog := zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()

	return readingsLog, func() { f.Close() }
}
