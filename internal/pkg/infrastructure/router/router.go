package router

import (
	"fmt"
	"net/http"

	"github.com/diwise/integration-sensordata/internal/pkg/application"
	"github.com/diwise/integration-sensordata/internal/pkg/infrastructure/metrics"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"
)

type Router interface {
	Start(port string) error
}

type routerStruct struct {
	router  chi.Router
	log     zerolog.Logger
	app     application.SensorDataService
	metrics *metrics.Metrics
}

// SetupRouter registers the sensor data endpoints. Reading log lines are
// written to log, so the caller decides where they end up.
func SetupRouter(chiRouter chi.Router, log zerolog.Logger, app application.SensorDataService, m *metrics.Metrics) *routerStruct {
	r := &routerStruct{
		router:  chiRouter,
		log:     log,
		app:     app,
		metrics: m,
	}

	chiRouter.Use(middleware.Logger)
	chiRouter.Get("/health", r.health)

	chiRouter.Method(http.MethodPost, "/data", m.WrapHandler("/data", http.HandlerFunc(r.receiveData)))
	chiRouter.Method(http.MethodGet, "/data", m.WrapHandler("/data", http.HandlerFunc(r.listData)))
	chiRouter.Method(http.MethodGet, "/data/{id}", m.WrapHandler("/data/{id}", http.HandlerFunc(r.getData)))

	if m != nil {
		chiRouter.Method(http.MethodGet, "/metrics", m.Handler())
	}

	return r
}

func (r *routerStruct) Start(port string) error {
	r.log.Info().Str("port", port).Msg("starting to listen for connections")
	return http.ListenAndServe(fmt.Sprintf(":%s", port), r.router)
}

func (router *routerStruct) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
