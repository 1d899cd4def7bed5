package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/diwise/integration-sensordata/domain"
	"github.com/diwise/integration-sensordata/internal/pkg/application"
	"github.com/go-chi/chi"
)

const dataReceived string = "Data received"

// receiveData always answers 200, whatever the form holds and whatever
// happens to the reading afterwards.
func (router *routerStruct) receiveData(w http.ResponseWriter, r *http.Request) {
	reading := domain.NewSensorReading(
		r.FormValue("temperature"),
		r.FormValue("humidity"),
		r.FormValue("pressure"),
		r.FormValue("vibration"),
		r.FormValue("airQuality"),
		nil,
	)

	router.log.Info().
		Str("temperature", reading.Temperature).
		Str("humidity", reading.Humidity).
		Str("pressure", reading.Pressure).
		Str("vibration", reading.Vibration).
		Str("airQuality", reading.AirQuality).
		Msgf("Temperature: %s°C, Humidity: %s%%, Pressure: %s Pa, Vibration: %s g, Air Quality: %s ppm",
			reading.Temperature, reading.Humidity, reading.Pressure, reading.Vibration, reading.AirQuality)

	err := router.app.Receive(r.Context(), reading)
	if err != nil {
		router.log.Warn().Err(err).Msg("sensor reading was not fully handled")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(dataReceived))
}

func (router *routerStruct) listData(w http.ResponseWriter, r *http.Request) {
	readings, err := router.query(r)
	if err != nil {
		var qe queryError
		if errors.As(err, &qe) {
			http.Error(w, qe.Error(), http.StatusBadRequest)
			return
		}

		router.log.Error().Err(err).Msg("failed to query sensor readings")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	router.writeJSON(w, readings)
}

func (router *routerStruct) getData(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "id must be a positive integer", http.StatusBadRequest)
		return
	}

	reading, err := router.app.GetByID(r.Context(), uint(id))
	if err != nil {
		if errors.Is(err, application.ErrSensorDataNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		router.log.Error().Err(err).Uint64("id", id).Msg("failed to get sensor reading")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	router.writeJSON(w, reading)
}

type queryError struct {
	msg string
}

func (e queryError) Error() string {
	return e.msg
}

// query applies at most one filter, picked in the order the cases are listed.
func (router *routerStruct) query(r *http.Request) ([]domain.SensorReading, error) {
	ctx := r.Context()
	q := r.URL.Query()

	switch {
	case q.Has("temperatureAbove"):
		return router.app.GetAbove(ctx, domain.Temperature, q.Get("temperatureAbove"))
	case q.Has("vibrationAbove"):
		return router.app.GetAbove(ctx, domain.Vibration, q.Get("vibrationAbove"))
	case q.Has("field"):
		field, err := domain.ParseField(q.Get("field"))
		if err != nil {
			return nil, queryError{err.Error()}
		}
		if q.Has("above") {
			return router.app.GetAbove(ctx, field, q.Get("above"))
		}
		if q.Has("equals") {
			return router.app.GetByValue(ctx, field, q.Get("equals"))
		}
		return nil, queryError{"field requires either above or equals"}
	case q.Has("airQuality"):
		return router.app.GetByValue(ctx, domain.AirQuality, q.Get("airQuality"))
	case q.Has("from") || q.Has("to"):
		start, end, err := timeRange(q)
		if err != nil {
			return nil, err
		}
		return router.app.GetBetween(ctx, start, end)
	case q.Get("sort") == "timestamp":
		return router.app.GetAllSorted(ctx)
	}

	return router.app.GetAll(ctx)
}

func timeRange(q url.Values) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, queryError{fmt.Sprintf("from must be an RFC3339 timestamp: %s", err.Error())}
	}

	end, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, queryError{fmt.Sprintf("to must be an RFC3339 timestamp: %s", err.Error())}
	}

	return start, end, nil
}

func (router *routerStruct) writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		router.log.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
