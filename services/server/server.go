// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server hosts the moderation HTTP API.
//
// This package wires the Gin router, middleware, metrics and tracing around
// an already-built moderation pipeline and chat hub.
//
// # Usage
//
//	svc, err := server.New(server.Config{Port: 8080}, server.Deps{
//	    Evaluator: filter,
//	    Hub:       hub,
//	    Relay:     relay,
//	})
//	if err != nil {
//	    return err
//	}
//	return svc.Run(ctx) // returns after ctx is cancelled and the server drains
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/AleutianAI/termolivre/pkg/logging"
	"github.com/AleutianAI/termolivre/services/moderation"
	"github.com/AleutianAI/termolivre/services/server/handlers"
	"github.com/AleutianAI/termolivre/services/server/middleware"
	"github.com/AleutianAI/termolivre/services/server/observability"
	"github.com/AleutianAI/termolivre/services/server/routes"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName labels traces and the otelgin middleware.
const ServiceName = "termolivre"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the server lifecycle.
//
// # Thread Safety
//
// Run blocks and must be called at most once per instance.
type Service interface {
	// Run listens on the configured port and serves until ctx is cancelled,
	// then shuts down gracefully. It returns nil after a clean shutdown.
	Run(ctx context.Context) error

	// Serve is Run on a caller-provided listener.
	Serve(ctx context.Context, ln net.Listener) error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

type Config struct {
	Port int

	// Mode is the gin mode; empty keeps gin's current mode.
	Mode string

	EnableMetrics bool

	// OTelEndpoint enables trace export when non-empty: an OTLP/gRPC
	// collector address, or StdoutTraceEndpoint.
	OTelEndpoint string

	APIToken        string
	Channel         string
	ShutdownTimeout time.Duration
}

// Deps are the pipeline components the server exposes. Evaluator is
// required; Hub and Relay enable the chat routes.
type Deps struct {
	Evaluator moderation.Evaluator
	Hub       handlers.Subscriber
	Relay     handlers.Publisher

	// Metrics receives HTTP request metrics and, with Gatherer, backs
	// GET /metrics. Nil disables both.
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer

	Logger *logging.Logger
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	deps          Deps
	logger        *logging.Logger
	router        *gin.Engine
	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// New builds the router and, when an endpoint is configured, the trace
// exporter.
func New(cfg Config, deps Deps) (Service, error) {
	if deps.Evaluator == nil {
		return nil, errors.New("server: evaluator is required")
	}
	s := &service{
		config: applyConfigDefaults(cfg),
		deps:   deps,
		logger: logging.OrDefault(deps.Logger).With("component", "server"),
	}
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		s.tracerCleanup = cleanup
		s.logger.Info("trace export enabled", "endpoint", s.config.OTelEndpoint)
	}

	s.initRouter()
	return s, nil
}

func (s *service) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cleanup()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *service) Serve(ctx context.Context, ln net.Listener) error {
	defer s.cleanup()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Hijacked websocket connections outlive Shutdown; deriving request
		// contexts from ctx lets them observe cancellation.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// StdoutTraceEndpoint selects the pretty-printing stdout exporter instead
// of an OTLP collector. Spans are written to stderr.
const StdoutTraceEndpoint = "stdout"

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up the trace exporter named by OTelEndpoint: StdoutTraceEndpoint
// prints spans locally, anything else is dialed as an OTLP/gRPC collector.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	traceExporter, closeExporter, err := newSpanExporter(ctx, s.config.OTelEndpoint)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(ServiceName)))
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
		if err := traceProvider.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown tracer provider", "error", err)
		}
		closeExporter()
	}

	return cleanup, nil
}

func newSpanExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, func(), error) {
	if endpoint == StdoutTraceEndpoint {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(os.Stderr),
			stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, func() {}, nil
	}

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return exporter, func() { _ = conn.Close() }, nil
}

func (s *service) initRouter() {
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())

	var (
		observer       middleware.RequestObserver
		metricsHandler http.Handler
	)
	if s.deps.Metrics != nil {
		observer = s.deps.Metrics
		if s.config.EnableMetrics && s.deps.Gatherer != nil {
			metricsHandler = promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})
		}
	}
	s.router.Use(middleware.Observe(observer, s.deps.Logger))
	s.router.Use(otelgin.Middleware(ServiceName))

	routes.SetupRoutes(s.router, routes.Deps{
		Evaluator:  s.deps.Evaluator,
		Subscriber: s.deps.Hub,
		Publisher:  s.deps.Relay,
		Metrics:    metricsHandler,
		Channel:    s.config.Channel,
		APIToken:   s.config.APIToken,
	})
}

// cleanup releases the tracer. Safe to call more than once.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}
