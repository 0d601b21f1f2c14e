// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobhunt-pipeline/internal/common/config"
	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/common/metrics"
	"jobhunt-pipeline/internal/common/observability"
	"jobhunt-pipeline/internal/common/validation"
	"jobhunt-pipeline/internal/discovery"
	"jobhunt-pipeline/internal/embedding"
	"jobhunt-pipeline/internal/matchindex"
	"jobhunt-pipeline/internal/models"
	"jobhunt-pipeline/internal/outreach"
	"jobhunt-pipeline/internal/resume"
	"jobhunt-pipeline/internal/scoring"
	"jobhunt-pipeline/internal/tracker"
)

const (
	PolicyContinuePartial = "continue-partial"
	PolicyFail            = "fail"
)

// ResumeLoader resolves a preferences resume reference into the resume text
// and a content version used to key the embedding index.
type ResumeLoader interface {
	Load(ctx context.Context, ref string) (version, text string, err error)
}

// Persistence hooks. All optional: a nil store disables that mirror and the
// run proceeds in-memory only. Persistence failures are logged, never fatal.

type RunSaver interface {
	Save(ctx context.Context, run *models.PipelineRun) error
}

type ListingSaver interface {
	SaveAll(ctx context.Context, listings []models.JobListing) error
}

type ChunkSaver interface {
	SaveVersion(ctx context.Context, version string, chunks []models.ResumeChunk) error
}

// Orchestrator sequences FINDING → MATCHING → OUTREACH → TRACKING per run.
// Each run is driven by its own goroutine; run state is mutated only there
// and exposed as deep-copied snapshots.
type Orchestrator struct {
	cfg      config.PipelineConfig
	matchCfg config.MatchingConfig

	finder   discovery.Finder
	resumes  ResumeLoader
	chunker  *resume.Chunker
	provider embedding.Provider
	drafter  outreach.Drafter
	tracker  *tracker.Tracker
	cache    StageCache
	obs      *observability.Observability
	logger   logger.Logger

	runStore     RunSaver
	listingStore ListingSaver
	chunkStore   ChunkSaver

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	mu     sync.Mutex
	run    *models.PipelineRun
	ctx    context.Context
	cancel context.CancelFunc

	// in-memory stage outputs, mirrored to the stage cache
	listings   []models.JobListing
	ranked     []rankedJob
	resumeText string
	drafted    []string
}

// serializable stage outputs for the cache

type findingOutput struct {
	Listings []models.JobListing `json:"listings"`
}

type rankedJob struct {
	Listing models.JobListing `json:"listing"`
	Score   models.MatchScore `json:"score"`
}

type matchingOutput struct {
	Ranked   []rankedJob `json:"ranked"`
	Scored   int         `json:"scored"`
	Failed   int         `json:"failed"`
	Unscored int         `json:"unscored"`
}

type outreachOutput struct {
	Drafted []string `json:"drafted"`
}

type trackingOutput struct {
	Registered []string `json:"registered"`
}

type Deps struct {
	Finder   discovery.Finder
	Resumes  ResumeLoader
	Chunker  *resume.Chunker
	Provider embedding.Provider
	Drafter  outreach.Drafter
	Tracker  *tracker.Tracker
	Cache    StageCache
	Obs      *observability.Observability

	RunStore     RunSaver
	ListingStore ListingSaver
	ChunkStore   ChunkSaver
}

func NewOrchestrator(cfg config.PipelineConfig, matchCfg config.MatchingConfig, deps Deps, log logger.Logger) *Orchestrator {
	cache := deps.Cache
	if cache == nil {
		cache = NewMemoryStageCache()
	}
	return &Orchestrator{
		cfg:          cfg,
		matchCfg:     matchCfg,
		finder:       deps.Finder,
		resumes:      deps.Resumes,
		chunker:      deps.Chunker,
		provider:     deps.Provider,
		drafter:      deps.Drafter,
		tracker:      deps.Tracker,
		cache:        cache,
		obs:          deps.Obs,
		logger:       log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		runStore:     deps.RunStore,
		listingStore: deps.ListingStore,
		chunkStore:   deps.ChunkStore,
		runs:         make(map[string]*activeRun),
	}
}

// Start validates the preferences, registers a new run and launches its run
// loop. The returned run id can be polled via Status and canceled via Cancel.
func (o *Orchestrator) Start(ctx context.Context, prefs models.SearchPreferences) (string, error) {
	if err := validation.ValidatePreferences(prefs); err != nil {
		return "", err
	}

	o.mu.Lock()
	if o.cfg.MaxActiveRuns > 0 {
		active := 0
		for _, ar := range o.runs {
			if !o.snapshotLocked(ar).Stage.Terminal() {
				active++
			}
		}
		if active >= o.cfg.MaxActiveRuns {
			o.mu.Unlock()
			return "", fmt.Errorf("max active runs (%d) reached", o.cfg.MaxActiveRuns)
		}
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithCancel(context.Background())
	ar := &activeRun{
		run: &models.PipelineRun{
			ID:          runID,
			Preferences: prefs,
			Stage:       models.StageInit,
			Status:      models.RunStatusRunning,
			StartedAt:   time.Now().UTC(),
		},
		ctx:    runCtx,
		cancel: cancel,
	}
	o.runs[runID] = ar
	o.mu.Unlock()

	metrics.RunsActive.Inc()
	o.logger.Info("run started", map[string]interface{}{
		"runId": runID,
		"role":  prefs.Role,
	})

	go o.execute(ar)
	return runID, nil
}

// Status returns a deep-copied snapshot of the run.
func (o *Orchestrator) Status(runID string) (*models.PipelineRun, error) {
	o.mu.RLock()
	ar, ok := o.runs[runID]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown run id: %s", runID)
	}
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return ar.run.Clone(), nil
}

// Cancel requests cooperative cancellation. The run loop observes it at the
// next stage boundary; the match loop additionally checks per iteration.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.RLock()
	ar, ok := o.runs[runID]
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown run id: %s", runID)
	}
	ar.cancel()
	o.logger.Info("run cancellation requested", map[string]interface{}{"runId": runID})
	return nil
}

func (o *Orchestrator) snapshotLocked(ar *activeRun) *models.PipelineRun {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return ar.run.Clone()
}

func (o *Orchestrator) execute(ar *activeRun) {
	defer metrics.RunsActive.Dec()

	type stageStep struct {
		stage models.Stage
		fn    func(ctx context.Context, ar *activeRun) error
	}
	steps := []stageStep{
		{models.StageFinding, o.runFinding},
		{models.StageMatching, o.runMatching},
		{models.StageOutreach, o.runOutreach},
		{models.StageTracking, o.runTracking},
	}

	for _, step := range steps {
		if ar.ctx.Err() != nil {
			o.finishCanceled(ar)
			return
		}

		o.transition(ar, step.stage)
		if err := o.runStage(ar, step.stage, step.fn); err != nil {
			if ar.ctx.Err() != nil {
				o.finishCanceled(ar)
				return
			}
			o.finishFailed(ar, step.stage, err)
			return
		}

		// Empty discovery result is a normal outcome, not a failure.
		if step.stage == models.StageFinding && len(ar.listings) == 0 {
			o.finish(ar, models.RunStatusNoResults)
			return
		}
	}

	ar.mu.Lock()
	status := ar.run.Status
	ar.mu.Unlock()
	if status != models.RunStatusPartial {
		status = models.RunStatusCompleted
	}
	o.finish(ar, status)
}

// runStage executes one stage with the per-stage timeout, retrying transient
// failures. Completed prior stages are never re-run: their outputs come from
// the stage cache.
func (o *Orchestrator) runStage(ar *activeRun, stage models.Stage, fn func(context.Context, *activeRun) error) error {
	attempts := 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		stageCtx := ar.ctx
		var cancel context.CancelFunc
		if o.cfg.StageTimeout > 0 {
			stageCtx, cancel = context.WithTimeout(ar.ctx, time.Duration(o.cfg.StageTimeout)*time.Millisecond)
		}

		start := time.Now()
		err := fn(stageCtx, ar)
		elapsed := time.Since(start)
		if cancel != nil {
			cancel()
		}

		metrics.PipelineStageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
		if o.obs != nil {
			o.obs.RecordStageDuration(ar.ctx, string(stage), elapsed)
		}

		if err == nil {
			o.recordStageResult(ar, stage, start, "")
			return nil
		}

		if stageCtx.Err() == context.DeadlineExceeded && ar.ctx.Err() == nil {
			timeoutErr := errors.NewStageTimeoutError(string(stage), time.Duration(o.cfg.StageTimeout)*time.Millisecond)
			o.recordError(ar, stage, timeoutErr)
			o.recordStageResult(ar, stage, start, timeoutErr.Error())
			if o.cfg.TimeoutPolicy == PolicyContinuePartial {
				o.logger.Warn("stage timed out, continuing with partial output", map[string]interface{}{
					"runId": ar.run.ID,
					"stage": string(stage),
				})
				ar.mu.Lock()
				ar.run.Status = models.RunStatusPartial
				ar.mu.Unlock()
				return nil
			}
			return timeoutErr
		}

		if ar.ctx.Err() != nil {
			return ar.ctx.Err()
		}

		lastErr = err
		code := errors.CodeOf(err)
		metrics.PipelineStageErrors.WithLabelValues(string(stage), string(code)).Inc()
		if errors.IsTransient(err) {
			if attempt == 0 {
				attempts += errors.GetRetryCount(code)
			}
			o.recordError(ar, stage, err)
			o.logger.Warn("stage failed on transient error, re-entering", map[string]interface{}{
				"runId":   ar.run.ID,
				"stage":   string(stage),
				"attempt": attempt + 1,
				"error":   err.Error(),
			})
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ar.ctx.Done():
				return ar.ctx.Err()
			}
			continue
		}

		o.recordError(ar, stage, err)
		o.recordStageResult(ar, stage, start, err.Error())
		return err
	}

	return lastErr
}

// persistRun mirrors the current run snapshot to the run store.
func (o *Orchestrator) persistRun(ar *activeRun) {
	if o.runStore == nil {
		return
	}
	ar.mu.Lock()
	snap := ar.run.Clone()
	ar.mu.Unlock()
	if err := o.runStore.Save(context.Background(), snap); err != nil {
		o.logger.Warn("run persistence failed", map[string]interface{}{
			"runId": snap.ID,
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) transition(ar *activeRun, stage models.Stage) {
	ar.mu.Lock()
	ar.run.Stage = stage
	ar.mu.Unlock()
	o.persistRun(ar)

	if o.obs != nil {
		o.obs.RecordStageTransition(ar.ctx, string(stage))
	}
	o.logger.Info("stage entered", map[string]interface{}{
		"runId": ar.run.ID,
		"stage": string(stage),
	})
}

func (o *Orchestrator) recordStageResult(ar *activeRun, stage models.Stage, start time.Time, errMsg string) {
	ar.mu.Lock()
	ar.run.StageLog = append(ar.run.StageLog, models.StageResult{
		Stage:       stage,
		StartedAt:   start.UTC(),
		CompletedAt: time.Now().UTC(),
		Error:       errMsg,
	})
	ar.mu.Unlock()
}

func (o *Orchestrator) recordError(ar *activeRun, stage models.Stage, err error) {
	ar.mu.Lock()
	ar.run.Errors = append(ar.run.Errors, models.RunError{
		Stage:     stage,
		Code:      string(errors.CodeOf(err)),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	})
	ar.mu.Unlock()
}

func (o *Orchestrator) finish(ar *activeRun, status models.RunStatus) {
	ar.mu.Lock()
	ar.run.Stage = models.StageDone
	ar.run.Status = status
	ar.run.CompletedAt = time.Now().UTC()
	ar.mu.Unlock()
	o.persistRun(ar)

	metrics.PipelineRunsTotal.WithLabelValues(string(status)).Inc()
	o.logger.Info("run finished", map[string]interface{}{
		"runId":  ar.run.ID,
		"status": string(status),
	})
}

func (o *Orchestrator) finishFailed(ar *activeRun, stage models.Stage, err error) {
	ar.mu.Lock()
	ar.run.Stage = models.StageFailed
	ar.run.Status = models.RunStatusFailed
	ar.run.CompletedAt = time.Now().UTC()
	ar.mu.Unlock()
	o.persistRun(ar)

	metrics.PipelineRunsTotal.WithLabelValues(string(models.RunStatusFailed)).Inc()
	o.logger.Error("run failed", map[string]interface{}{
		"runId": ar.run.ID,
		"stage": string(stage),
		"error": err.Error(),
	})
}

func (o *Orchestrator) finishCanceled(ar *activeRun) {
	ar.mu.Lock()
	ar.run.Stage = models.StageFailed
	ar.run.Status = models.RunStatusCanceled
	ar.run.CompletedAt = time.Now().UTC()
	ar.mu.Unlock()
	o.persistRun(ar)

	metrics.PipelineRunsTotal.WithLabelValues(string(models.RunStatusCanceled)).Inc()
	o.logger.Info("run canceled", map[string]interface{}{"runId": ar.run.ID})
}

// --- stages ---

func (o *Orchestrator) runFinding(ctx context.Context, ar *activeRun) error {
	var cached findingOutput
	if ok, err := o.cache.Get(ctx, ar.run.ID, models.StageFinding, &cached); err == nil && ok {
		ar.listings = cached.Listings
		o.logger.Info("finding stage served from cache", map[string]interface{}{
			"runId":    ar.run.ID,
			"listings": len(cached.Listings),
		})
		return nil
	}

	listings, err := o.finder.Find(ctx, ar.run.Preferences)
	if err != nil {
		if errors.IsTransient(err) {
			return err
		}
		return errors.NewDiscoveryFailedError(err)
	}

	ar.listings = listings
	if o.listingStore != nil && len(listings) > 0 {
		if err := o.listingStore.SaveAll(ctx, listings); err != nil {
			o.logger.Warn("listing persistence failed", map[string]interface{}{
				"runId": ar.run.ID,
				"error": err.Error(),
			})
		}
	}
	if err := o.cache.Put(ctx, ar.run.ID, models.StageFinding, findingOutput{Listings: listings}); err != nil {
		o.logger.Warn("stage cache write failed", map[string]interface{}{
			"runId": ar.run.ID,
			"stage": string(models.StageFinding),
			"error": err.Error(),
		})
	}
	return nil
}

func (o *Orchestrator) runMatching(ctx context.Context, ar *activeRun) error {
	var cached matchingOutput
	if ok, err := o.cache.Get(ctx, ar.run.ID, models.StageMatching, &cached); err == nil && ok {
		ar.ranked = cached.Ranked
		return nil
	}

	version, text, err := o.resumes.Load(ctx, ar.run.Preferences.ResumeRef)
	if err != nil {
		return err
	}
	ar.resumeText = text

	chunks, err := o.chunker.Chunk(text)
	if err != nil {
		return errors.NewValidationFailedError("resume unusable: " + err.Error())
	}

	index := matchindex.New(o.provider, o.logger)
	if err := index.Rebuild(ctx, version, chunks); err != nil {
		return errors.NewEmbeddingFailedError(err)
	}
	if index.Partial() {
		o.recordError(ar, models.StageMatching, errors.NewPartialBatchFailureError(
			len(index.FailedChunks()), len(chunks), "resume chunks failed to embed"))
	}
	if o.chunkStore != nil {
		if err := o.chunkStore.SaveVersion(ctx, version, index.Chunks()); err != nil {
			o.logger.Warn("chunk persistence failed", map[string]interface{}{
				"runId": ar.run.ID,
				"error": err.Error(),
			})
		}
	}

	engine := scoring.NewEngine(index, o.matchCfg, o.logger)
	controller := scoring.NewController(engine, o.matchCfg, o.logger)
	batch := controller.Run(ctx, ar.listings, ar.run.Preferences)

	scored, failed, unscored := batch.Counts()
	if failed > 0 || unscored > 0 {
		o.recordError(ar, models.StageMatching, errors.NewPartialBatchFailureError(
			failed+unscored, len(batch.Results), "jobs without a score"))
		ar.mu.Lock()
		ar.run.Status = models.RunStatusPartial
		ar.mu.Unlock()
	}
	if o.obs != nil {
		for _, r := range batch.Results {
			o.obs.RecordItemOutcome(ctx, string(models.StageMatching), string(r.Status))
		}
	}

	ranked := make([]rankedJob, 0, len(batch.Ranked))
	for _, r := range batch.Ranked {
		ranked = append(ranked, rankedJob{Listing: r.Listing, Score: *r.Score})
	}
	ar.ranked = ranked

	out := matchingOutput{Ranked: ranked, Scored: scored, Failed: failed, Unscored: unscored}
	if err := o.cache.Put(ctx, ar.run.ID, models.StageMatching, out); err != nil {
		o.logger.Warn("stage cache write failed", map[string]interface{}{
			"runId": ar.run.ID,
			"stage": string(models.StageMatching),
			"error": err.Error(),
		})
	}
	return nil
}

func (o *Orchestrator) runOutreach(ctx context.Context, ar *activeRun) error {
	var cached outreachOutput
	if ok, err := o.cache.Get(ctx, ar.run.ID, models.StageOutreach, &cached); err == nil && ok {
		ar.drafted = cached.Drafted
		return nil
	}

	if ar.resumeText == "" {
		_, text, err := o.resumes.Load(ctx, ar.run.Preferences.ResumeRef)
		if err != nil {
			return err
		}
		ar.resumeText = text
	}

	topN := o.cfg.OutreachTopN
	if topN <= 0 || topN > len(ar.ranked) {
		topN = len(ar.ranked)
	}

	drafted := make([]string, 0, topN)
	var failures int
	for _, rj := range ar.ranked[:topN] {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := o.drafter.Draft(ctx, rj.Listing, ar.resumeText, rj.Score); err != nil {
			failures++
			o.recordError(ar, models.StageOutreach, err)
			if o.obs != nil {
				o.obs.RecordItemOutcome(ctx, string(models.StageOutreach), "failed")
			}
			continue
		}
		drafted = append(drafted, rj.Listing.ID())
		if o.obs != nil {
			o.obs.RecordItemOutcome(ctx, string(models.StageOutreach), "drafted")
		}
	}

	if topN > 0 && len(drafted) == 0 {
		return errors.NewOutreachFailedError("all", fmt.Errorf("all %d drafts failed", failures))
	}
	if failures > 0 {
		ar.mu.Lock()
		ar.run.Status = models.RunStatusPartial
		ar.mu.Unlock()
	}

	ar.drafted = drafted
	if err := o.cache.Put(ctx, ar.run.ID, models.StageOutreach, outreachOutput{Drafted: drafted}); err != nil {
		o.logger.Warn("stage cache write failed", map[string]interface{}{
			"runId": ar.run.ID,
			"stage": string(models.StageOutreach),
			"error": err.Error(),
		})
	}
	return nil
}

func (o *Orchestrator) runTracking(ctx context.Context, ar *activeRun) error {
	var cached trackingOutput
	if ok, err := o.cache.Get(ctx, ar.run.ID, models.StageTracking, &cached); err == nil && ok {
		return nil
	}

	draftedSet := make(map[string]bool, len(ar.drafted))
	for _, id := range ar.drafted {
		draftedSet[id] = true
	}

	registered := make([]string, 0, len(ar.ranked))
	for _, rj := range ar.ranked {
		o.tracker.Register(rj.Listing, rj.Score.Score)
		if draftedSet[rj.Listing.ID()] {
			if _, err := o.tracker.Advance(rj.Listing.ID(), models.AppStageOutreachDrafted); err != nil {
				// Already advanced on a previous entry of this stage.
				o.logger.Debug("skipping advance", map[string]interface{}{
					"jobId": rj.Listing.ID(),
					"error": err.Error(),
				})
			}
		}
		registered = append(registered, rj.Listing.ID())
	}

	if err := o.cache.Put(ctx, ar.run.ID, models.StageTracking, trackingOutput{Registered: registered}); err != nil {
		o.logger.Warn("stage cache write failed", map[string]interface{}{
			"runId": ar.run.ID,
			"stage": string(models.StageTracking),
			"error": err.Error(),
		})
	}
	return nil
}
