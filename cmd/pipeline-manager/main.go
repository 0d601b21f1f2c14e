// cmd/pipeline-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jobhunt-pipeline/internal/common/aws"
	"jobhunt-pipeline/internal/common/config"
	"jobhunt-pipeline/internal/common/database"
	stderrors "jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/common/observability"
	"jobhunt-pipeline/internal/common/retry"
	"jobhunt-pipeline/internal/discovery"
	"jobhunt-pipeline/internal/embedding"
	"jobhunt-pipeline/internal/models"
	"jobhunt-pipeline/internal/notify"
	"jobhunt-pipeline/internal/outreach"
	"jobhunt-pipeline/internal/pipeline"
	"jobhunt-pipeline/internal/resume"
	"jobhunt-pipeline/internal/store"
	"jobhunt-pipeline/internal/tracker"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pipeline manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retry.Do(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retry.Do(ctx, func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, log, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retry.Do(ctx, func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Stores ---
	runStore := store.NewRunStore(pg.DB, log)
	listingStore := store.NewListingStore(pg.DB, log)
	chunkStore := store.NewChunkStore(pg.DB, log)
	appStore := store.NewApplicationStore(pg.DB, log)

	// --- External collaborators ---
	gemini := cfg.Integrations.Gemini
	embedder, err := embedding.NewGeminiProvider(ctx, gemini.APIKey, gemini.EmbeddingModel)
	if err != nil {
		zapLog.Fatal("gemini embedding client failed", zap.Error(err))
	}
	provider := embedding.WithRetry(embedder, gemini.MaxRetries, 500*time.Millisecond, log)

	drafter, err := outreach.NewGeminiDrafter(ctx, gemini.APIKey, gemini.DraftModel, log)
	if err != nil {
		zapLog.Fatal("gemini drafter failed", zap.Error(err))
	}

	finder := discovery.NewElasticsearchFinder(esClient.Client, cfg.Database.Elasticsearch.ListingIndex, log)

	var emailSender notify.EmailSender
	var smsSender notify.SMSSender
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		emailSender = sesClient
	}
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		smsSender = snsClient
	}
	notifier := notify.New(emailSender, smsSender, cfg.Integrations.AWS, log)
	zapLog.Info("All external service clients initialized")

	// --- Pipeline wiring ---
	appTracker := tracker.New(cfg.Tracker, log)
	orchestrator := pipeline.NewOrchestrator(cfg.Pipeline, cfg.Matching, pipeline.Deps{
		Finder:   finder,
		Resumes:  resume.NewFileLoader(cfg.App.ResumeDir),
		Chunker:  resume.NewChunker(resume.Config{MaxChars: cfg.Matching.ChunkMaxChars, MinChars: cfg.Matching.ChunkMinChars}),
		Provider: provider,
		Drafter:  drafter,
		Tracker:  appTracker,
		Cache:    pipeline.NewRedisStageCache(redisClient.GetClient(), time.Duration(cfg.Pipeline.StageCacheTTL)*time.Second),
		Obs:      obs,

		RunStore:     runStore,
		ListingStore: listingStore,
		ChunkStore:   chunkStore,
	}, log)

	// --- Reminder loop ---
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	if cfg.Tracker.CheckInterval > 0 {
		go runReminderLoop(loopCtx, cfg.Tracker, appTracker, notifier, appStore, log)
	}

	// --- HTTP API, Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /runs", func(w http.ResponseWriter, r *http.Request) {
		var prefs models.SearchPreferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		runID, err := orchestrator.Start(r.Context(), prefs)
		if err != nil {
			status := http.StatusConflict
			if stderrors.CodeOf(err) == stderrors.ErrCodeValidationFailed {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
	})
	mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := orchestrator.Status(r.PathValue("id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})
	mux.HandleFunc("DELETE /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := orchestrator.Cancel(r.PathValue("id")); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "canceling"})
	})

	addr := cfg.App.MetricsAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping pipeline manager...")
	stopLoop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Pipeline manager stopped gracefully")
}

// runReminderLoop periodically drains due reminders from the tracker,
// delivers them and persists the updated records. Delivery failures leave
// the reminder in place for the next tick.
func runReminderLoop(ctx context.Context, cfg config.TrackerConfig, tr *tracker.Tracker, notifier *notify.Notifier, apps *store.ApplicationStore, log logger.Logger) {
	interval := time.Duration(cfg.CheckInterval) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("reminder loop started", map[string]interface{}{
		"intervalMinutes": cfg.CheckInterval,
	})

	for {
		select {
		case <-ctx.Done():
			log.Info("reminder loop stopped", nil)
			return
		case <-ticker.C:
			due := tr.DueReminders(time.Now().UTC())
			if len(due) == 0 {
				continue
			}
			if err := notifier.SendReminders(ctx, due, cfg.NotifyEmail, cfg.NotifyPhone); err != nil {
				log.WithError(err).Warn("reminder delivery incomplete", map[string]interface{}{
					"due": len(due),
				})
				continue
			}
			for _, rec := range due {
				tr.ClearReminder(rec.JobID)
				if saved, ok := tr.Get(rec.JobID); ok {
					if err := apps.Save(ctx, saved); err != nil {
						log.WithError(err).Warn("application record persist failed", map[string]interface{}{
							"jobId": rec.JobID,
						})
					}
				}
			}
			log.Info("reminders delivered", map[string]interface{}{
				"count": len(due),
			})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
