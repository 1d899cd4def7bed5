package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/context-broker/pkg/ngsild/client"
	"github.com/diwise/integration-sensordata/domain"
	"github.com/diwise/integration-sensordata/internal/pkg/application/fiware"
	"github.com/diwise/integration-sensordata/internal/pkg/application/lwm2m"
	"github.com/diwise/integration-sensordata/internal/pkg/infrastructure/metrics"
	"github.com/diwise/integration-sensordata/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var ErrSensorDataNotFound = errors.New("sensor data not found")

type SensorDataService interface {
	GetAll(ctx context.Context) ([]domain.SensorReading, error)
	Save(ctx context.Context, reading domain.SensorReading) (domain.SensorReading, error)
	GetByID(ctx context.Context, id uint) (domain.SensorReading, error)

	GetAbove(ctx context.Context, field domain.Field, threshold string) ([]domain.SensorReading, error)
	GetByValue(ctx context.Context, field domain.Field, value string) ([]domain.SensorReading, error)
	GetBetween(ctx context.Context, start, end time.Time) ([]domain.SensorReading, error)
	GetAllSorted(ctx context.Context) ([]domain.SensorReading, error)

	Receive(ctx context.Context, reading domain.SensorReading) error
}

// Config decides what happens to readings handed to Receive. The zero value
// only counts them.
type Config struct {
	PersistReadings bool
	DeviceID        string
	LwM2MEndpoint   string
	ContextBroker   client.ContextBrokerClient
}

type sensorDataService struct {
	store   database.Store
	cfg     Config
	metrics *metrics.Metrics
	sender  lwm2m.SenderFunc
	log     zerolog.Logger
}

var tracer = otel.Tracer("integration-sensordata/app")

func New(ctx context.Context, store database.Store, cfg Config, m *metrics.Metrics) SensorDataService {
	return &sensorDataService{
		store:   store,
		cfg:     cfg,
		metrics: m,
		sender:  lwm2m.Send,
		log:     logging.GetFromContext(ctx),
	}
}

func (s *sensorDataService) GetAll(ctx context.Context) ([]domain.SensorReading, error) {
	return s.store.FindAll(ctx)
}

func (s *sensorDataService) Save(ctx context.Context, reading domain.SensorReading) (domain.SensorReading, error) {
	return s.store.Save(ctx, reading)
}

func (s *sensorDataService) GetByID(ctx context.Context, id uint) (domain.SensorReading, error) {
	reading, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return domain.SensorReading{}, ErrSensorDataNotFound
		}
		return domain.SensorReading{}, err
	}

	return reading, nil
}

func (s *sensorDataService) GetAbove(ctx context.Context, field domain.Field, threshold string) ([]domain.SensorReading, error) {
	return s.store.FindByFieldGreaterThan(ctx, field, threshold)
}

func (s *sensorDataService) GetByValue(ctx context.Context, field domain.Field, value string) ([]domain.SensorReading, error) {
	return s.store.FindByField(ctx, field, value)
}

func (s *sensorDataService) GetBetween(ctx context.Context, start, end time.Time) ([]domain.SensorReading, error) {
	return s.store.FindByTimestampBetween(ctx, start, end)
}

func (s *sensorDataService) GetAllSorted(ctx context.Context) ([]domain.SensorReading, error) {
	return s.store.FindAllOrderByTimestampAsc(ctx)
}

// Receive persists and forwards a reading according to the service Config.
// Every step is attempted and the failures are returned joined.
func (s *sensorDataService) Receive(ctx context.Context, reading domain.SensorReading) error {
	var err error

	ctx, span := tracer.Start(ctx, "receive-sensor-reading")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, ctx, logger := o11y.AddTraceIDToLoggerAndStoreInContext(span, s.log, ctx)

	s.metrics.ReadingReceived()

	var errs []error

	if s.cfg.PersistReadings {
		saved, saveErr := s.Save(ctx, reading)
		s.metrics.ReadingStored(saveErr == nil)

		if saveErr != nil {
			logger.Error().Err(saveErr).Msg("failed to save sensor reading")
			errs = append(errs, saveErr)
		} else {
			reading = saved
			logger.Debug().Uint("id", saved.ID).Msg("sensor reading saved")
		}
	}

	if s.cfg.ContextBroker != nil {
		fwErr := fiware.CreateOrUpdateAirQualityObserved(ctx, s.cfg.ContextBroker, reading, s.cfg.DeviceID)
		if fwErr != nil {
			s.metrics.ForwardFailed("fiware")
			errs = append(errs, fmt.Errorf("failed to forward reading to context broker: %w", fwErr))
		}
	}

	if s.cfg.LwM2MEndpoint != "" {
		lwErr := lwm2m.CreateAndSendAsLWM2M(ctx, reading, s.cfg.DeviceID, s.cfg.LwM2MEndpoint, s.sender)
		if lwErr != nil {
			s.metrics.ForwardFailed("lwm2m")
			errs = append(errs, fmt.Errorf("failed to forward reading as lwm2m: %w", lwErr))
		}
	}

	err = errors.Join(errs...)

	return err
}
