package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	analysishandler "github.com/medflow/medinsight/internal/analysis/handler"
	analysisservice "github.com/medflow/medinsight/internal/analysis/service"
	"github.com/medflow/medinsight/internal/report"
	reporthandler "github.com/medflow/medinsight/internal/report/handler"
	"github.com/medflow/medinsight/internal/scan/consumers"
	scanhandler "github.com/medflow/medinsight/internal/scan/handler"
	"github.com/medflow/medinsight/internal/scan/ingest"
	"github.com/medflow/medinsight/internal/scan/insight"
	scanservice "github.com/medflow/medinsight/internal/scan/service"
	"github.com/medflow/medinsight/internal/scan/store"
	"github.com/medflow/medinsight/pkg/auth"
	"github.com/medflow/medinsight/pkg/config"
	"github.com/medflow/medinsight/pkg/database"
	"github.com/medflow/medinsight/pkg/gemini"
	"github.com/medflow/medinsight/pkg/httputil"
	"github.com/medflow/medinsight/pkg/logger"
	"github.com/medflow/medinsight/pkg/messaging"
)

const serviceName = "insight-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Insight Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Gemini is optional in development: analysis falls back to canned answers
	// and smart scans are not offered without it
	var model *gemini.Client
	if cfg.Gemini.APIKey != "" {
		model, err = gemini.New(ctx, &cfg.Gemini, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Gemini client")
		}
		defer model.Close()
	} else {
		log.Warn().Msg("no Gemini API key configured, smart scans disabled")
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	vectors := store.NewPostgresStore(db)
	if err := vectors.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare vector store")
	}

	var (
		rmq       *messaging.RabbitMQ
		publisher scanservice.Publisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		p, err := messaging.NewPublisher(rmq, messaging.ExchangeScanEvents, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		publisher = p
	}

	renderer := report.NewRenderer(report.Options{
		OutputDir: cfg.Report.OutputDir,
		Title:     cfg.Report.Title,
		MaxDepth:  cfg.Report.MaxDepth,
	}, log)
	if cfg.Report.Retention > 0 {
		go sweepReports(ctx, renderer, cfg.Report.Retention, log)
	}
	policy := gemini.PolicyFrom(&cfg.Gemini)

	var analysisModel analysisservice.Model
	if model != nil {
		analysisModel = model
	}
	analyzer := analysisservice.NewService(analysisModel, policy, log)

	var scans *scanservice.Service
	if model != nil {
		pipeline := scanservice.NewPipeline(scanservice.PipelineConfig{
			Ingester: ingest.New(
				ingest.NewHTTPFetcher(cfg.Scan.FetchTimeout, cfg.Scan.MaxDocumentBytes),
				model, cfg.Scan.ChunkSize, cfg.Scan.ChunkOverlap, log,
			),
			Store:        vectors,
			Embedder:     model,
			Generator:    insight.NewGenerator(model, policy, log),
			Renderer:     renderer,
			TopK:         cfg.Scan.TopK,
			RetainChunks: cfg.Scan.RetainChunks,
		}, log)

		jobs := scanservice.NewJobStore(cfg.Scan.JobTTL, log)
		defer jobs.Close()
		scans = scanservice.NewService(pipeline, jobs, publisher, log)

		if rmq != nil {
			scanConsumer, err := consumers.NewScanRequestConsumer(rmq, scans, publisher, log)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create scan request consumer")
			}
			if err := scanConsumer.Start(ctx); err != nil {
				log.Fatal().Err(err).Msg("failed to start scan request consumer")
			}
		}
	}

	verifier := auth.NewVerifier(&cfg.JWT)
	analysisHandler := analysishandler.NewHandler(analyzer, cfg.Server.MaxUploadBytes, log)
	renderHandler := reporthandler.NewHandler(renderer, cfg.Server.MaxUploadBytes, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Location", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":      "healthy",
			"service":     serviceName,
			"database":    db.Health(r.Context()),
			"smart_scans": scans != nil,
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.Authenticate(verifier))

		r.Route("/reports", func(r chi.Router) {
			r.Post("/analyze", analysisHandler.Analyze)
			r.Post("/render", renderHandler.Render)
			r.Get("/files/{name}", renderHandler.File)
		})

		if scans != nil {
			scanHandler := scanhandler.NewHandler(scans, log)
			r.Route("/scans", func(r chi.Router) {
				r.With(httputil.RequireRole(auth.RoleDoctor, auth.RoleAdmin)).Post("/", scanHandler.Create)
				r.Get("/{id}", scanHandler.Get)
				r.Get("/{id}/report", scanHandler.Report)
			})
		}
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if scans != nil {
		if err := scans.Wait(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("smart scans still running at shutdown")
		}
	}

	log.Info().Msg("server stopped")
}

// sweepReports removes rendered PDFs older than retention until ctx is done
func sweepReports(ctx context.Context, renderer *report.Renderer, retention time.Duration, log *logger.Logger) {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := renderer.Sweep(retention); err != nil {
			log.Warn().Err(err).Msg("report sweep failed")
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
