package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/integration-sensordata/domain"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	Save(ctx context.Context, reading domain.SensorReading) (domain.SensorReading, error)
	FindAll(ctx context.Context) ([]domain.SensorReading, error)
	FindByID(ctx context.Context, id uint) (domain.SensorReading, error)

	FindByFieldGreaterThan(ctx context.Context, field domain.Field, threshold string) ([]domain.SensorReading, error)
	FindByField(ctx context.Context, field domain.Field, value string) ([]domain.SensorReading, error)
	FindByTimestampBetween(ctx context.Context, start, end time.Time) ([]domain.SensorReading, error)
	FindAllOrderByTimestampAsc(ctx context.Context) ([]domain.SensorReading, error)

	FindByTemperatureGreaterThan(ctx context.Context, temperature string) ([]domain.SensorReading, error)
	FindByVibrationGreaterThan(ctx context.Context, vibration string) ([]domain.SensorReading, error)
	FindByAirQuality(ctx context.Context, airQuality string) ([]domain.SensorReading, error)
}

type store struct {
	db *gorm.DB
}

// Connect opens the configured database and makes sure the sensor_readings
// table exists.
func Connect(ctx context.Context, log zerolog.Logger, cfg Config) (Store, error) {
	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(&log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver(), err)
	}

	err = db.WithContext(ctx).AutoMigrate(&domain.SensorReading{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sensor_readings table: %w", err)
	}

	log.Info().Str("driver", cfg.Driver()).Msg("connected to database")

	return &store{db: db}, nil
}

func (s *store) Save(ctx context.Context, reading domain.SensorReading) (domain.SensorReading, error) {
	if reading.Timestamp != nil {
		ts := reading.Timestamp.UTC()
		reading.Timestamp = &ts
	}

	result := s.db.WithContext(ctx).Save(&reading)
	if result.Error != nil {
		return domain.SensorReading{}, fmt.Errorf("failed to save sensor reading: %w", result.Error)
	}

	return reading, nil
}

func (s *store) FindAll(ctx context.Context) ([]domain.SensorReading, error) {
	return s.find(s.db.WithContext(ctx))
}

func (s *store) FindByID(ctx context.Context, id uint) (domain.SensorReading, error) {
	reading := domain.SensorReading{}

	result := s.db.WithContext(ctx).First(&reading, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return domain.SensorReading{}, ErrNotFound
		}
		return domain.SensorReading{}, fmt.Errorf("failed to find sensor reading %d: %w", id, result.Error)
	}

	return reading, nil
}

// FindByFieldGreaterThan compares the stored text with the threshold using the
// database string ordering, i.e. "9" > "10".
func (s *store) FindByFieldGreaterThan(ctx context.Context, field domain.Field, threshold string) ([]domain.SensorReading, error) {
	column, err := columnFor(field)
	if err != nil {
		return nil, err
	}

	return s.find(s.db.WithContext(ctx).Where(column+" > ?", threshold))
}

func (s *store) FindByField(ctx context.Context, field domain.Field, value string) ([]domain.SensorReading, error) {
	column, err := columnFor(field)
	if err != nil {
		return nil, err
	}

	return s.find(s.db.WithContext(ctx).Where(column+" = ?", value))
}

// FindByTimestampBetween is inclusive at both ends. Readings without a
// timestamp never match.
func (s *store) FindByTimestampBetween(ctx context.Context, start, end time.Time) ([]domain.SensorReading, error) {
	return s.find(s.db.WithContext(ctx).
		Where(`"timestamp" BETWEEN ? AND ?`, start.UTC(), end.UTC()).
		Order(`"timestamp" ASC, id ASC`))
}

// FindAllOrderByTimestampAsc puts readings without a timestamp last.
func (s *store) FindAllOrderByTimestampAsc(ctx context.Context) ([]domain.SensorReading, error) {
	return s.find(s.db.WithContext(ctx).Order(`"timestamp" IS NULL, "timestamp" ASC, id ASC`))
}

func (s *store) FindByTemperatureGreaterThan(ctx context.Context, temperature string) ([]domain.SensorReading, error) {
	return s.FindByFieldGreaterThan(ctx, domain.Temperature, temperature)
}

func (s *store) FindByVibrationGreaterThan(ctx context.Context, vibration string) ([]domain.SensorReading, error) {
	return s.FindByFieldGreaterThan(ctx, domain.Vibration, vibration)
}

func (s *store) FindByAirQuality(ctx context.Context, airQuality string) ([]domain.SensorReading, error) {
	return s.FindByField(ctx, domain.AirQuality, airQuality)
}

func (s *store) find(tx *gorm.DB) ([]domain.SensorReading, error) {
	readings := []domain.SensorReading{}

	result := tx.Find(&readings)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query sensor readings: %w", result.Error)
	}

	return readings, nil
}

func columnFor(field domain.Field) (string, error) {
	column := field.Column()
	if column == "" {
		return "", fmt.Errorf("unknown sensor field %q", field)
	}
	return `"` + column + `"`, nil
}
