package fiware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/diwise/context-broker/pkg/ngsild/client"
	"github.com/diwise/integration-sensordata/domain"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var method = expects.RequestMethod

func TestThatReadingIsMergedIntoExistingEntity(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPatch),
		),
		Returns(
			response.Code(http.StatusNoContent),
		),
	)

	cbClient := client.NewContextBrokerClient(s.URL())

	err := CreateOrUpdateAirQualityObserved(context.Background(), cbClient, testReading(), "sensor-01")
	is.NoErr(err)
}

func TestThatMergeFailureIsReturned(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPatch),
		),
		Returns(
			response.Code(http.StatusInternalServerError),
			response.Body([]byte("")),
		),
	)

	cbClient := client.NewContextBrokerClient(s.URL())

	err := CreateOrUpdateAirQualityObserved(context.Background(), cbClient, testReading(), "sensor-01")
	is.True(err != nil)
}

func TestThatOnlyNumericValuesBecomeProperties(t *testing.T) {
	is := is.New(t)

	reading := domain.NewSensorReading("22.5", "fifty", "101325", "0.02", "", nil)

	fragments := createFragmentsFromReading(reading, "2023-08-27T22:08:00Z")
	is.Equal(len(fragments), 2) // temperature and pressure
}

func testReading() domain.SensorReading {
	ts := time.Date(2023, 8, 27, 22, 8, 0, 0, time.UTC)
	return domain.NewSensorReading("22.5", "50", "101325", "0.02", "400", &ts)
}
