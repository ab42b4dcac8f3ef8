// Package webd serves the engine over HTTP, with a websocket feed of
// engine events.
package webd

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"

	"github.com/rotblauer/routecat/engine"
	"github.com/rotblauer/routecat/params"
)

type WebDaemon struct {
	Config *params.WebDaemonConfig

	engine         *engine.Engine
	logger         *slog.Logger
	melodyInstance *melody.Melody

	taskMu sync.Mutex
	task   *engine.DetectionTask
}

func NewWebDaemon(config *params.WebDaemonConfig, eng *engine.Engine) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	return &WebDaemon{
		Config: config,
		engine: eng,
		logger: slog.With("d", "web"),
	}
}

// Run starts the HTTP server and blocks until it fails.
func (s *WebDaemon) Run() error {
	router := s.NewRouter()
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", s.Config.Address)
	return http.Serve(ln, router)
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()

	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware, recoveryMiddleware)

	router.Path("/events").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	api := apiRoutes.NewRoute().Subrouter()
	api.Use(contentTypeMiddlewareFunc("application/json"))

	api.Path("/activities").HandlerFunc(s.handleListActivities).Methods(http.MethodGet)
	api.Path("/activities/{id}/matches").HandlerFunc(s.handleMatches).Methods(http.MethodGet)
	api.Path("/activities/{id}/group").HandlerFunc(s.handleGroupFor).Methods(http.MethodGet)

	api.Path("/groups").HandlerFunc(s.handleGroups).Methods(http.MethodGet)
	api.Path("/groups/{id}/route").HandlerFunc(s.handleConsensusRoute).Methods(http.MethodGet)

	api.Path("/sections").HandlerFunc(s.handleSections).Methods(http.MethodGet)
	api.Path("/sections/{id}").HandlerFunc(s.handleSection).Methods(http.MethodGet)
	api.Path("/sections/{id}/performances").HandlerFunc(s.handlePerformances).Methods(http.MethodGet)
	api.Path("/sections/{id}/laps/{activity}").HandlerFunc(s.handleLaps).Methods(http.MethodGet)
	api.Path("/potentials").HandlerFunc(s.handlePotentials).Methods(http.MethodGet)

	api.Path("/heatmap").HandlerFunc(s.handleHeatmap).Methods(http.MethodGet)
	api.Path("/heatmap/at").HandlerFunc(s.handleHeatmapAt).Methods(http.MethodGet)

	api.Path("/stats").HandlerFunc(s.handleStats).Methods(http.MethodGet)
	api.Path("/detect/status").HandlerFunc(s.handleDetectStatus).Methods(http.MethodGet)

	// Mutations require the API token when one is configured.
	authed := api.NewRoute().Subrouter()
	authed.Use(tokenAuthenticationMiddleware)

	authed.Path("/activities").HandlerFunc(s.handleAddActivity).Methods(http.MethodPost)
	authed.Path("/activities/{id}").HandlerFunc(s.handleRemoveActivity).Methods(http.MethodDelete)
	authed.Path("/clear").HandlerFunc(s.handleClear).Methods(http.MethodPost)
	authed.Path("/detect").HandlerFunc(s.handleDetect).Methods(http.MethodPost)
	authed.Path("/detect/cancel").HandlerFunc(s.handleDetectCancel).Methods(http.MethodPost)
	authed.Path("/names/groups/{id}").HandlerFunc(s.handleRenameGroup).Methods(http.MethodPost)
	authed.Path("/names/sections/{id}").HandlerFunc(s.handleRenameSection).Methods(http.MethodPost)

	return router
}
