package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestThatCountersAreExposedByHandler(t *testing.T) {
	is := is.New(t)
	m := New()

	m.ReadingReceived()
	m.ReadingStored(true)
	m.ReadingStored(false)
	m.ForwardFailed("lwm2m")

	body := scrape(is, m)

	is.True(strings.Contains(body, "sensordata_readings_received_total 1"))
	is.True(strings.Contains(body, "sensordata_readings_stored_total 1"))
	is.True(strings.Contains(body, "sensordata_store_errors_total 1"))
	is.True(strings.Contains(body, `sensordata_forward_errors_total{target="lwm2m"} 1`))
}

func TestThatWrapHandlerCountsRequestsByStatus(t *testing.T) {
	is := is.New(t)
	m := New()

	h := m.WrapHandler("/data", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/data/1", nil))

	body := scrape(is, m)

	is.True(strings.Contains(body, `http_requests_total{route="/data",status="404"} 1`))
}

func TestThatNilMetricsIsSafeToUse(t *testing.T) {
	var m *Metrics

	m.ReadingReceived()
	m.ReadingStored(true)
	m.ForwardFailed("fiware")
}

func scrape(is *is.I, m *Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	is.Equal(rec.Code, http.StatusOK)

	b, err := io.ReadAll(rec.Body)
	is.NoErr(err)
	return string(b)
}
