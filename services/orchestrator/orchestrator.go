// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the core transfer orchestrator service.
//
// This package contains the main Service type that coordinates all
// components: HTTP routing, the dialogue state machine, the transaction
// gateway with its resilient transport, session storage, the reply
// layer, and observability infrastructure.
//
// # Usage
//
//	settings := config.Load()
//	svc, err := orchestrator.New(settings)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianTransfer/pkg/resilience"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/agent"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/clients"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/config"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/reply"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/store"
	"github.com/AleutianAI/AleutianTransfer/services/orchestrator/ttl"
)

// =============================================================================
// Service Interface
// =============================================================================

// Service is the running orchestrator.
//
// # Description
//
// A Service owns every long-lived component: the HTTP server, the
// session store, the TTL sweeper, and the trace exporter. It is fully
// initialized by New and torn down when Run returns.
//
// # Thread Safety
//
// All fields are read-only after New() returns; Run() is called at most
// once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Description
	//
	// Serves on the configured listen address until the process receives
	// SIGINT or SIGTERM, then drains in-flight requests and releases all
	// resources (sweeper, store, tracer).
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or shut down cleanly
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Limitations
	//
	//   - Should not be used to modify routes after construction
	Router() *gin.Engine
}

// metricsOnce guards observability.InitMetrics, which panics on a
// second registration.
var metricsOnce sync.Once

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Fields
//
//   - settings: resolved configuration
//   - router: Gin HTTP engine
//   - sessions: session store (Badger or in-memory)
//   - transport: resilient HTTP transport shared by all gateway calls
//   - gateway: transaction service client
//   - machine: dialogue state machine
//   - responder: reply layer (template or LLM-backed)
//   - sweeper: background TTL sweeper
//   - tracerCleanup: shuts down the OTLP exporter on exit (may be nil)
type service struct {
	settings      config.Settings
	router        *gin.Engine
	sessions      store.SessionStore
	transport     *resilience.Transport
	gateway       *clients.TransactionClient
	machine       *agent.Machine
	responder     reply.Responder
	sweeper       *ttl.Sweeper
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new orchestrator Service with the given settings.
//
// # Description
//
// New initializes all components:
//  1. OpenTelemetry tracing (when an OTLP endpoint is configured)
//  2. Prometheus metrics
//  3. The resilient transport and transaction gateway
//  4. The session store (Badger when a store path is set, else memory)
//  5. The dialogue state machine and reply layer
//  6. The TTL sweeper
//  7. HTTP routes
//
// # Inputs
//
//   - settings: resolved configuration (see config.Load)
//
// # Outputs
//
//   - Service: ready-to-run orchestrator service
//   - error: non-nil if initialization fails
//
// # Assumptions
//
//   - The transaction service and OTLP collector are reachable if
//     configured; neither is contacted during construction
func New(settings config.Settings) (Service, error) {
	s := &service{
		settings: settings,
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	// Prometheus metrics register against the default registry, so guard
	// against double registration when multiple services are constructed
	// in one process (tests).
	metricsOnce.Do(func() {
		observability.InitMetrics()
	})

	s.transport = resilience.NewTransport(resilience.Config{
		ConnectTimeout: settings.ConnectTimeout,
		ReadTimeout:    settings.ReadTimeout,
		Retry: &resilience.RetryPolicy{
			MaxAttempts:  settings.MaxRetries,
			InitialDelay: settings.RetryInitialDelay,
			MaxDelay:     settings.RetryMaxDelay,
		},
		Breaker: resilience.BreakerConfig{
			FailureThreshold: settings.BreakerThreshold,
			OpenTimeout:      settings.BreakerResetTimeout,
			OnStateChange: func(from, to resilience.CircuitState) {
				slog.Warn("Circuit breaker state change", "from", from.String(), "to", to.String())
			},
		},
	})

	s.gateway = clients.NewTransactionClient(clients.Config{
		BaseURL:   settings.TransactionAPIURL,
		Transport: s.transport,
	})
	s.machine = agent.NewMachine(s.gateway)

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	if err := s.initResponder(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize responder: %w", err)
	}

	s.sweeper = ttl.NewSweeper(s.sessions, nil, ttl.Config{
		Interval:   settings.SweepInterval,
		SessionTTL: settings.SessionTTL,
	})

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start TTL sweeper: %w", err)
	}

	server := &http.Server{
		Addr:    s.settings.ListenAddr,
		Handler: s.router,
	}

	slog.Info("Starting transfer orchestrator server", "addr", s.settings.ListenAddr)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutting down transfer orchestrator server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up an OTLP trace exporter to the configured collector. When no
// endpoint is configured, trace export is disabled and spans stay
// in-process no-ops.
//
// # Outputs
//
//   - func(context.Context): cleanup function to call on shutdown
//   - error: non-nil if tracer setup fails
//
// # Limitations
//
//   - Uses an insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	if s.settings.OTLPEndpoint == "" {
		slog.Info("OTLP endpoint not configured, trace export disabled")
		return nil, nil
	}

	ctx := context.Background()

	conn, err := grpc.NewClient(s.settings.OTLPEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("transfer-orchestrator")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStore selects and opens the session store.
//
// # Description
//
// A configured store path selects the durable Badger store so sessions
// survive restarts. An empty path selects the in-memory store, which is
// the right choice for tests and single-shot deployments.
func (s *service) initStore() error {
	if s.settings.SessionStorePath == "" {
		slog.Info("Session store path not configured, using in-memory store")
		s.sessions = store.NewMemoryStore()
		return nil
	}

	badgerStore, err := store.NewBadgerStore(store.BadgerConfig{
		Path: s.settings.SessionStorePath,
	})
	if err != nil {
		return err
	}

	slog.Info("Badger session store opened", "path", s.settings.SessionStorePath)
	s.sessions = badgerStore
	return nil
}

// initResponder selects the reply layer.
//
// # Description
//
// With LLM replies enabled the responder rephrases template replies
// through the OpenAI API, falling back to the template text whenever the
// model is unavailable or drops a required fact. Otherwise replies come
// straight from the deterministic Spanish templates.
func (s *service) initResponder() error {
	if !s.settings.UseLLMReplies {
		s.responder = reply.NewTemplateResponder()
		return nil
	}

	generator, err := reply.NewOpenAIGenerator()
	if err != nil {
		return err
	}

	slog.Info("Using LLM-backed reply rephrasing")
	s.responder = reply.NewLLMResponder(generator)
	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("transfer-orchestrator"))

	routes.SetupRoutes(s.router, s.sessions, s.machine, s.responder, s.gateway, s.transport)
}

// cleanup releases all resources held by the service.
//
// # Description
//
// Called when Run() exits or on initialization failure. Stops the
// sweeper, closes the session store, and shuts down the tracer.
func (s *service) cleanup() {
	if s.sweeper != nil {
		if err := s.sweeper.Stop(); err != nil {
			slog.Warn("TTL sweeper stop error", "error", err)
		}
	}

	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			slog.Warn("Session store close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
