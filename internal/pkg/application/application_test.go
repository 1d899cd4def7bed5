package application

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/diwise/integration-sensordata/domain"
	"github.com/diwise/integration-sensordata/internal/pkg/infrastructure/repositories/database"
	"github.com/farshidtz/senml/v2"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestThatSaveThenGetByIDReturnsAnEqualReading(t *testing.T) {
	is, ctx, svc := testSetup(t, Config{})

	ts := time.Date(2023, 8, 27, 22, 8, 0, 0, time.UTC)
	reading := domain.NewSensorReading("22.5", "50", "101325", "0.02", "400", &ts)

	saved, err := svc.Save(ctx, reading)
	is.NoErr(err)

	found, err := svc.GetByID(ctx, saved.ID)
	is.NoErr(err)

	is.Equal(found.ID, saved.ID)
	is.Equal(found.Temperature, reading.Temperature)
	is.Equal(found.Humidity, reading.Humidity)
	is.Equal(found.Pressure, reading.Pressure)
	is.Equal(found.Vibration, reading.Vibration)
	is.Equal(found.AirQuality, reading.AirQuality)
	is.True(found.Timestamp.Equal(*reading.Timestamp))
}

func TestThatGetByIDFailsWithNotFoundForUnknownID(t *testing.T) {
	is, ctx, svc := testSetup(t, Config{})

	_, err := svc.GetByID(ctx, 17)
	is.True(errors.Is(err, ErrSensorDataNotFound))
}

func TestThatQueryHelpersDelegateToTheStore(t *testing.T) {
	is, ctx, svc := testSetup(t, Config{})

	t0 := time.Date(2023, 8, 27, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	for _, r := range []domain.SensorReading{
		domain.NewSensorReading("25", "", "", "0.5", "400", &t1),
		domain.NewSensorReading("15", "", "", "0.01", "800", &t0),
		domain.NewSensorReading("30", "", "", "", "400", nil),
	} {
		_, err := svc.Save(ctx, r)
		is.NoErr(err)
	}

	all, err := svc.GetAll(ctx)
	is.NoErr(err)
	is.Equal(len(all), 3)

	above, err := svc.GetAbove(ctx, domain.Temperature, "20")
	is.NoErr(err)
	is.Equal(len(above), 2)

	equal, err := svc.GetByValue(ctx, domain.AirQuality, "400")
	is.NoErr(err)
	is.Equal(len(equal), 2)

	between, err := svc.GetBetween(ctx, t0, t0.Add(30*time.Minute))
	is.NoErr(err)
	is.Equal(len(between), 1)
	is.Equal(between[0].Temperature, "15")

	sorted, err := svc.GetAllSorted(ctx)
	is.NoErr(err)
	is.Equal(sorted[0].Temperature, "15")
	is.Equal(sorted[1].Temperature, "25")
	is.Equal(sorted[2].Temperature, "30")
}

func TestThatReceiveDoesNotPersistByDefault(t *testing.T) {
	is, ctx, svc := testSetup(t, Config{})

	err := svc.Receive(ctx, domain.NewSensorReading("22.5", "50", "101325", "0.02", "400", nil))
	is.NoErr(err)

	all, err := svc.GetAll(ctx)
	is.NoErr(err)
	is.Equal(len(all), 0) // log-only unless persistence is enabled
}

func TestThatReceivePersistsWhenEnabled(t *testing.T) {
	is, ctx, svc := testSetup(t, Config{PersistReadings: true})

	err := svc.Receive(ctx, domain.NewSensorReading("22.5", "50", "101325", "0.02", "400", nil))
	is.NoErr(err)

	readings, err := svc.GetByValue(ctx, domain.AirQuality, "400")
	is.NoErr(err)
	is.Equal(len(readings), 1)
}

func TestThatReceiveForwardsTheSavedReadingAsLwM2M(t *testing.T) {
	is, ctx, svc := testSetup(t, Config{PersistReadings: true, DeviceID: "sensor-01", LwM2MEndpoint: "http://lwm2m"})

	packs := []senml.Pack{}
	svc.(*sensorDataService).sender = func(ctx context.Context, url string, p senml.Pack) error {
		is.Equal(url, "http://lwm2m")
		packs = append(packs, p)
		return nil
	}

	err := svc.Receive(ctx, domain.NewSensorReading("22.5", "50", "", "", "", nil))
	is.NoErr(err)
	is.Equal(len(packs), 2)
	is.Equal(packs[0][0].StringValue, "sensor-01")
}

func TestThatReceiveReturnsSaveFailures(t *testing.T) {
	is := is.New(t)
	errBroken := errors.New("database is gone")

	svc := New(context.Background(), &failingStore{err: errBroken}, Config{PersistReadings: true}, nil)

	err := svc.Receive(context.Background(), domain.SensorReading{})
	is.True(errors.Is(err, errBroken))
}

type failingStore struct {
	database.Store
	err error
}

func (f *failingStore) Save(ctx context.Context, reading domain.SensorReading) (domain.SensorReading, error) {
	return domain.SensorReading{}, f.err
}

func testSetup(t *testing.T, cfg Config) (*is.I, context.Context, SensorDataService) {
	is := is.New(t)
	ctx := context.Background()

	store, err := database.Connect(ctx, zerolog.Nop(), database.NewSQLiteConfig(filepath.Join(t.TempDir(), "sensordata.db")))
	is.NoErr(err)

	return is, ctx, New(ctx, store, cfg, nil)
}
