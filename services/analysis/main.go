// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/archlens/pkg/logging"
	"github.com/AleutianAI/archlens/services/analysis/config"
	"github.com/AleutianAI/archlens/services/analysis/observability"
	"github.com/AleutianAI/archlens/services/analysis/oracle"
	"github.com/AleutianAI/archlens/services/analysis/processor"
	"github.com/AleutianAI/archlens/services/analysis/routes"
	"github.com/AleutianAI/archlens/services/analysis/storage"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	// Get the collector URL from the env var set in podman-compose.yml
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "archlens-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("analysis-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("FATAL: invalid service configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("ANALYSIS_LOG_LEVEL")),
		Service: "analysis",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	ctx := context.Background()

	// Classification catalog, hot-reloaded when a file is configured.
	catalog, err := config.NewCatalogProvider(cfg.CatalogFile, slog.Default())
	if err != nil {
		log.Fatalf("FATAL: could not load the service catalog: %v", err)
	}
	if err := catalog.Start(ctx); err != nil {
		log.Fatalf("FATAL: could not watch the service catalog: %v", err)
	}
	defer catalog.Stop()

	// Record store. Analyses survive restarts; the processor sweep
	// requeues anything left incomplete by a crash.
	storeCfg := storage.DefaultConfig()
	storeCfg.Path = cfg.DataDir
	storeCfg.Logger = slog.Default()
	db, err := storage.OpenDB(storeCfg)
	if err != nil {
		log.Fatalf("FATAL: could not open the record store at %s: %v", cfg.DataDir, err)
	}
	defer db.Close()

	records := storage.NewRecordStore(db)

	var documents storage.DocumentStore = storage.NewBadgerDocumentStore(db)
	if cfg.GCS.Enabled() {
		gcsStore, err := storage.NewGCSDocumentStore(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix, cfg.GCS.CredentialsFile)
		if err != nil {
			log.Fatalf("FATAL: could not connect to Cloud Storage bucket %s: %v", cfg.GCS.Bucket, err)
		}
		defer gcsStore.Close()
		documents = gcsStore
		slog.Info("storing diagram documents in Cloud Storage", "bucket", cfg.GCS.Bucket)
	}

	log.Println("Configuring the analysis oracle")
	orc, err := oracle.New()
	if err != nil {
		log.Fatalf("Failed to initialize the analysis oracle: %v", err)
	}

	procCfg := processor.DefaultConfig()
	procCfg.Workers = cfg.Processor.Workers
	procCfg.QueueSize = cfg.Processor.QueueSize
	procCfg.OracleTimeout = cfg.Processor.OracleTimeout()
	procCfg.SweepInterval = cfg.Processor.SweepInterval()

	proc := processor.New(procCfg, records, documents, orc,
		processor.WithCatalog(catalog.Catalog),
		processor.WithMetrics(observability.DefaultMetrics),
		processor.WithLogger(slog.Default()))
	proc.Start(ctx)
	defer proc.Stop()

	router := gin.Default()
	router.Use(otelgin.Middleware("analysis-service"))

	routes.SetupRoutes(router, records, documents, proc, catalog.Catalog)

	log.Println("Starting the analysis server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
