package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/tcpolan/pump/internal/bodyweight"
	"github.com/tcpolan/pump/internal/config"
	"github.com/tcpolan/pump/internal/db"
	"github.com/tcpolan/pump/internal/exercises"
	"github.com/tcpolan/pump/internal/middleware"
	"github.com/tcpolan/pump/internal/programs"
	"github.com/tcpolan/pump/internal/sessions"
	"github.com/tcpolan/pump/internal/telemetry/metrics"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config *config.Config
	dbPool *pgxpool.Pool

	sessionController *sessions.Controller
	logReconciler     *sessions.Reconciler

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
}

type NewServerParams struct {
	Config         *config.Config
	VersionInfo    string
	TracingEnabled bool
}

func NewServer(ctx context.Context, params NewServerParams) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("pump", "backend", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	exercisesRepo := exercises.NewRepo(dbPool)
	if err := exercises.EnsureSeeded(ctx, exercisesRepo); err != nil {
		return nil, fmt.Errorf("seed exercises: %w", err)
	}

	sessionsRepo := sessions.NewRepo(dbPool)
	sessionController := sessions.NewController(sessionsRepo, metricsManager)
	// pick up a workout left running by a previous process
	if err := sessionController.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("refresh session controller: %w", err)
	}
	if active := sessionController.Active(); active != nil {
		log.Warnf("resumed active workout session %s (program %s)", active.ID, active.ProgramName)
	}

	logReconciler := sessions.NewReconciler(
		sessionsRepo,
		metricsManager,
		time.Duration(params.Config.LogFlushDebounceMillis)*time.Millisecond,
	)

	return &Server{
		config:            params.Config,
		dbPool:            dbPool,
		versionInfo:       params.VersionInfo,
		sessionController: sessionController,
		logReconciler:     logReconciler,
		metricsManager:    metricsManager,
		promRegistry:      promRegistry,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("pump-router"))

	exercisesHandler := exercises.NewHandler(exercises.NewRepo(s.dbPool))
	r.HandleFunc("/exercises", exercisesHandler.HandleList).Methods("GET", "OPTIONS").Name("list-exercises")
	r.HandleFunc("/exercises", exercisesHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-exercise")
	r.HandleFunc("/exercises", exercisesHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-exercise")
	r.HandleFunc("/exercises/{id}", exercisesHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-exercise")
	r.HandleFunc("/exercises/{id}", exercisesHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-exercise")

	programsHandler := programs.NewHandler(programs.NewRepo(s.dbPool))
	r.HandleFunc("/programs", programsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-programs")
	r.HandleFunc("/programs", programsHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-program")
	r.HandleFunc("/programs", programsHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-program")
	r.HandleFunc("/programs/{id}", programsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-program")
	r.HandleFunc("/programs/{id}", programsHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-program")
	r.HandleFunc("/programs/{id}/exercises", programsHandler.HandleGetExercises).Methods("GET", "OPTIONS").Name("get-program-exercises")
	r.HandleFunc("/programs/{id}/exercises", programsHandler.HandleSetExercises).Methods("PUT", "OPTIONS").Name("set-program-exercises")

	sessionsRepo := sessions.NewRepo(s.dbPool)
	sessionsHandler := sessions.NewHandler(
		s.sessionController,
		s.logReconciler,
		sessionsRepo,
		s.config.HistoryDefaultLimit,
	)
	r.HandleFunc("/sessions", sessionsHandler.HandleStart).Methods("POST", "OPTIONS").Name("start-session")
	r.HandleFunc("/sessions/active", sessionsHandler.HandleGetActive).Methods("GET", "OPTIONS").Name("get-active-session")
	r.HandleFunc("/sessions/active/exercises", sessionsHandler.HandleActiveExercises).Methods("GET", "OPTIONS").Name("get-active-exercises")
	r.HandleFunc("/sessions/finish", sessionsHandler.HandleFinish).Methods("POST", "OPTIONS").Name("finish-session")
	r.HandleFunc("/sessions/cancel", sessionsHandler.HandleCancel).Methods("POST", "OPTIONS").Name("cancel-session")
	r.HandleFunc("/sessions/logs/{id}", sessionsHandler.HandleUpdateLog).Methods("PUT", "OPTIONS").Name("update-session-log")
	r.HandleFunc("/sessions/history", sessionsHandler.HandleHistory).Methods("GET", "OPTIONS").Name("session-history")
	r.HandleFunc("/sessions/stats", sessionsHandler.HandleStats).Methods("GET", "OPTIONS").Name("session-stats")
	r.HandleFunc("/sessions/{id}/logs", sessionsHandler.HandleSessionLogs).Methods("GET", "OPTIONS").Name("get-session-logs")

	bodyweightHandler := bodyweight.NewHandler(bodyweight.NewRepo(s.dbPool), s.metricsManager)
	r.HandleFunc("/bodyweight", bodyweightHandler.HandleList).Methods("GET", "OPTIONS").Name("list-weight-entries")
	r.HandleFunc("/bodyweight", bodyweightHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-weight-entry")
	r.HandleFunc("/bodyweight", bodyweightHandler.HandleDeleteAll).Methods("DELETE", "OPTIONS").Name("delete-weight-entries")

	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(s.versionInfo))
	}).Methods("GET").Name("version")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("pump service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	// flush any buffered set edits before closing the pool
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := s.logReconciler.FlushAll(flushCtx); err != nil {
		log.Errorf("failed to flush pending log edits: %s", err)
	}

	s.sessionController.Close()

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
