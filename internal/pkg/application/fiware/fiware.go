package fiware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	fw "github.com/diwise/context-broker/pkg/datamodels/fiware"
	"github.com/diwise/context-broker/pkg/ngsild/client"
	ngsierrors "github.com/diwise/context-broker/pkg/ngsild/errors"
	"github.com/diwise/context-broker/pkg/ngsild/types"
	"github.com/diwise/context-broker/pkg/ngsild/types/entities"
	. "github.com/diwise/context-broker/pkg/ngsild/types/entities/decorators"
	"github.com/diwise/context-broker/pkg/ngsild/types/properties"
	"github.com/diwise/integration-sensordata/domain"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("integration-sensordata/fiware")

// CreateOrUpdateAirQualityObserved merges the reading into the
// AirQualityObserved entity of the device, creating the entity if the broker
// does not know it yet.
func CreateOrUpdateAirQualityObserved(ctx context.Context, cbClient client.ContextBrokerClient, reading domain.SensorReading, deviceID string) error {
	var err error

	ctx, span := tracer.Start(ctx, "create-air-quality-observed")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, ctx, logger := o11y.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)

	headers := map[string][]string{"Content-Type": {"application/ld+json"}}

	observedAt := time.Now().UTC()
	if reading.Timestamp != nil {
		observedAt = reading.Timestamp.UTC()
	}
	timestamp := observedAt.Format(time.RFC3339)

	decorators := []entities.EntityDecoratorFunc{
		entities.DefaultContext(),
		DateTime(properties.DateObserved, timestamp),
	}
	decorators = append(decorators, createFragmentsFromReading(reading, timestamp)...)

	var fragment types.EntityFragment
	fragment, err = entities.NewFragment(decorators...)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create entity fragments")
		return err
	}

	entityID := fw.AirQualityObservedIDPrefix + deviceID

	_, err = cbClient.MergeEntity(ctx, entityID, fragment, headers)
	if err == nil {
		logger.Info().Msgf("updated entity %s", entityID)
		return nil
	}

	if !errors.Is(err, ngsierrors.ErrNotFound) {
		logger.Error().Err(err).Msg("failed to merge entity")
		return err
	}

	var entity types.Entity
	entity, err = entities.New(entityID, fw.AirQualityObservedTypeName, decorators...)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create new entity")
		return err
	}

	_, err = cbClient.CreateEntity(ctx, entity, headers)
	if err != nil {
		logger.Error().Err(err).Msg("failed to post entity to context broker")
		return err
	}

	logger.Info().Msgf("created entity %s", entityID)

	return nil
}

type attribute struct {
	name     string
	unitCode string
	scale    float64
}

// Form values are Celsius, percent, Pa and ppm. AirQualityObserved wants
// relativeHumidity as a fraction and atmosphericPressure in hPa.
var attributes map[domain.Field]attribute = map[domain.Field]attribute{
	domain.Temperature: {"temperature", "CEL", 1},
	domain.Humidity:    {"relativeHumidity", "P1", 0.01},
	domain.Pressure:    {"atmosphericPressure", "A97", 0.01},
	domain.AirQuality:  {"CO2", "59", 1},
}

func createFragmentsFromReading(reading domain.SensorReading, timestamp string) []entities.EntityDecoratorFunc {
	readings := []entities.EntityDecoratorFunc{}

	for _, f := range []domain.Field{domain.Temperature, domain.Humidity, domain.Pressure, domain.AirQuality} {
		v, err := strconv.ParseFloat(strings.TrimSpace(reading.Value(f)), 64)
		if err != nil {
			continue
		}

		a := attributes[f]
		readings = append(readings, Number(
			a.name,
			v*a.scale,
			properties.UnitCode(a.unitCode),
			properties.ObservedAt(timestamp),
		))
	}

	return readings
}
