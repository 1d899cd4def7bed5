package lwm2m

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/integration-sensordata/domain"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/farshidtz/senml/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var tlsSkipVerify bool

func init() {
	tlsSkipVerify = env.GetVariableOrDefault(zerolog.Logger{}, "TLS_SKIP_VERIFY", "0") == "1"
}

var tracer = otel.Tracer("integration-sensordata/lwm2m")

const (
	TemperatureURN   string = "urn:oma:lwm2m:ext:3303"
	HumidityURN      string = "urn:oma:lwm2m:ext:3304"
	AccelerometerURN string = "urn:oma:lwm2m:ext:3313"
	PressureURN      string = "urn:oma:lwm2m:ext:3323"
	AirQualityURN    string = "urn:oma:lwm2m:ext:3428"
)

type object struct {
	urn      string
	resource string
	unit     string
}

var objects map[domain.Field]object = map[domain.Field]object{
	domain.Temperature: {TemperatureURN, "5700", senml.UnitCelsius},
	domain.Humidity:    {HumidityURN, "5700", senml.UnitRelativeHumidity},
	domain.Pressure:    {PressureURN, "5700", "Pa"},
	domain.Vibration:   {AccelerometerURN, "5702", "g"},
	domain.AirQuality:  {AirQualityURN, "17", "ppm"},
}

var fieldOrder = []domain.Field{
	domain.Temperature, domain.Humidity, domain.Pressure, domain.Vibration, domain.AirQuality,
}

// CreateAndSendAsLWM2M sends one pack per numeric value of the reading. Values
// that are empty or not numbers are skipped.
func CreateAndSendAsLWM2M(ctx context.Context, reading domain.SensorReading, deviceID, url string, sender SenderFunc) error {
	logger := logging.GetFromContext(ctx)
	log := logger.With().Str("device_id", deviceID).Logger()

	timestamp := time.Now().UTC()
	if reading.Timestamp != nil {
		timestamp = *reading.Timestamp
	}

	var errs []error

	for _, p := range createPacks(reading, deviceID, timestamp) {
		err := sender(ctx, url, p)
		if err != nil {
			log.Error().Err(err).Msg("could not send pack")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func createPacks(reading domain.SensorReading, deviceID string, timestamp time.Time) []senml.Pack {
	packs := []senml.Pack{}

	for _, f := range fieldOrder {
		text := strings.TrimSpace(reading.Value(f))
		if text == "" {
			continue
		}

		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			continue
		}

		o := objects[f]
		packs = append(packs, newPack(o.urn, o.resource, deviceID, v, o.unit, timestamp, timestamp))
	}

	return packs
}

func newPack(baseName, name, id string, v float64, u string, bt, t time.Time) senml.Pack {
	p := senml.Pack{
		senml.Record{
			BaseName:    baseName,
			BaseTime:    float64(bt.Unix()),
			Name:        "0",
			StringValue: id,
		},
		newRec(name, v, u, t),
	}
	return p
}

func newRec(name string, v float64, u string, t time.Time) senml.Record {
	return senml.Record{
		Name:  name,
		Value: &v,
		Time:  float64(t.Unix()),
		Unit:  u,
	}
}

type SenderFunc = func(context.Context, string, senml.Pack) error

func Send(ctx context.Context, url string, pack senml.Pack) error {
	var err error

	ctx, span := tracer.Start(ctx, "send-object")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var httpClient http.Client

	if tlsSkipVerify {
		customTransport := http.DefaultTransport.(*http.Transport).Clone()
		customTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		httpClient = http.Client{
			Transport: otelhttp.NewTransport(customTransport),
		}
	} else {
		httpClient = http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	var b []byte
	b, err = json.Marshal(pack)
	if err != nil {
		return err
	}

	var req *http.Request
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(b))
	if err != nil {
		return err
	}

	req.Header.Add("Content-Type", "application/senml+json")

	var resp *http.Response
	resp, err = httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		err = fmt.Errorf("unexpected response code %d", resp.StatusCode)
	}

	return err
}
