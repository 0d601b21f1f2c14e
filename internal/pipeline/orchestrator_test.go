// internal/pipeline/orchestrator_test.go
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobhunt-pipeline/internal/common/config"
	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/discovery"
	"jobhunt-pipeline/internal/models"
	"jobhunt-pipeline/internal/outreach"
	"jobhunt-pipeline/internal/resume"
	"jobhunt-pipeline/internal/tracker"
)

type fakeFinder struct {
	mu       sync.Mutex
	listings []models.JobListing
	errs     []error
	calls    int
}

func (f *fakeFinder) Find(_ context.Context, _ models.SearchPreferences) ([]models.JobListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.listings, nil
}

type fakeResumeLoader struct{}

func (fakeResumeLoader) Load(_ context.Context, ref string) (string, string, error) {
	text := "SUMMARY\nEngineering manager with platform background leading infra teams.\n" +
		"SKILLS\nKubernetes, AWS, Terraform, Go, incident response and on-call culture."
	return "v-" + ref, text, nil
}

type fakeDrafter struct {
	mu      sync.Mutex
	drafted []string
	failFor map[string]bool
}

func (d *fakeDrafter) Draft(_ context.Context, job models.JobListing, _ string, _ models.MatchScore) (*outreach.Artifact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFor[job.ID()] {
		return nil, fmt.Errorf("draft rejected")
	}
	d.drafted = append(d.drafted, job.ID())
	return &outreach.Artifact{JobID: job.ID(), Message: "hello"}, nil
}

// wordProvider maps text to a deterministic bag-of-words vector.
type wordProvider struct{}

func (wordProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 32)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var h uint32
		for _, r := range word {
			h = h*31 + uint32(r)
		}
		vec[h%32]++
	}
	return vec, nil
}

func emListings() []models.JobListing {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return []models.JobListing{
		{Source: "board", SourceID: "k8s-aws-1", Title: "EM Platform", Company: "Acme",
			Description: "Lead a platform team running Kubernetes on AWS", PostedAt: base},
		{Source: "board", SourceID: "k8s-aws-2", Title: "EM Infra", Company: "Beta",
			Description: "Engineering manager for Kubernetes and AWS infrastructure", PostedAt: base.Add(time.Hour)},
		{Source: "board", SourceID: "neither", Title: "EM Mobile", Company: "Gamma",
			Description: "Manage an iOS application team", PostedAt: base.Add(2 * time.Hour)},
	}
}

func emPreferences() models.SearchPreferences {
	return models.SearchPreferences{
		Role:      "Engineering Manager",
		TechStack: []string{"Kubernetes", "AWS"},
		MinSalary: 700000,
		ResumeRef: "resume-1",
	}
}

func testConfigs() (config.PipelineConfig, config.MatchingConfig) {
	return config.PipelineConfig{
			StageTimeout:  5000,
			TimeoutPolicy: PolicyContinuePartial,
			OutreachTopN:  2,
		}, config.MatchingConfig{
			RetrievalK:         5,
			SemanticWeight:     0.6,
			RequirementsWeight: 0.4,
			Parallelism:        2,
		}
}

func testOrchestrator(t *testing.T, finder *fakeFinder, drafter *fakeDrafter) (*Orchestrator, *tracker.Tracker) {
	t.Helper()
	log := logger.NewNoOpLogger()
	pipeCfg, matchCfg := testConfigs()
	tr := tracker.New(config.TrackerConfig{ReminderDays: map[string]int{"DISCOVERED": 3}}, log)
	o := NewOrchestrator(pipeCfg, matchCfg, Deps{
		Finder:   finder,
		Resumes:  fakeResumeLoader{},
		Chunker:  resume.NewChunker(resume.Config{MaxChars: 500, MinChars: 40}),
		Provider: wordProvider{},
		Drafter:  drafter,
		Tracker:  tr,
		Cache:    NewMemoryStageCache(),
	}, log)
	return o, tr
}

func waitTerminal(t *testing.T, o *Orchestrator, runID string) *models.PipelineRun {
	t.Helper()
	var snap *models.PipelineRun
	require.Eventually(t, func() bool {
		var err error
		snap, err = o.Status(runID)
		require.NoError(t, err)
		return snap.Stage.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	finder := &fakeFinder{listings: emListings()}
	drafter := &fakeDrafter{}
	o, tr := testOrchestrator(t, finder, drafter)

	runID, err := o.Start(context.Background(), emPreferences())
	require.NoError(t, err)

	snap := waitTerminal(t, o, runID)
	assert.Equal(t, models.StageDone, snap.Stage)
	assert.Equal(t, models.RunStatusCompleted, snap.Status)
	assert.False(t, snap.CompletedAt.IsZero())

	// All four stages logged without errors.
	stages := make([]models.Stage, 0, len(snap.StageLog))
	for _, res := range snap.StageLog {
		stages = append(stages, res.Stage)
		assert.Empty(t, res.Error)
	}
	assert.Equal(t, []models.Stage{
		models.StageFinding, models.StageMatching, models.StageOutreach, models.StageTracking,
	}, stages)

	// Top 2 drafted are the Kubernetes/AWS listings; mobile job is ranked last.
	drafter.mu.Lock()
	drafted := append([]string(nil), drafter.drafted...)
	drafter.mu.Unlock()
	assert.ElementsMatch(t, []string{"board:k8s-aws-1", "board:k8s-aws-2"}, drafted)

	// Drafted jobs advanced to OUTREACH_DRAFTED, the rest stay DISCOVERED.
	rec, ok := tr.Get("board:k8s-aws-2")
	require.True(t, ok)
	assert.Equal(t, models.AppStageOutreachDrafted, rec.Stage)
	rec, ok = tr.Get("board:neither")
	require.True(t, ok)
	assert.Equal(t, models.AppStageDiscovered, rec.Stage)
}

func TestOrchestrator_EmptyDiscoveryIsNoResults(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeFinder{}, &fakeDrafter{})

	runID, err := o.Start(context.Background(), emPreferences())
	require.NoError(t, err)

	snap := waitTerminal(t, o, runID)
	assert.Equal(t, models.StageDone, snap.Stage)
	assert.Equal(t, models.RunStatusNoResults, snap.Status)
	assert.Empty(t, snap.Errors)
}

func TestOrchestrator_PermanentDiscoveryFailure(t *testing.T) {
	finder := &fakeFinder{errs: []error{fmt.Errorf("index does not exist")}}
	o, _ := testOrchestrator(t, finder, &fakeDrafter{})

	runID, err := o.Start(context.Background(), emPreferences())
	require.NoError(t, err)

	snap := waitTerminal(t, o, runID)
	assert.Equal(t, models.StageFailed, snap.Stage)
	assert.Equal(t, models.RunStatusFailed, snap.Status)
	require.NotEmpty(t, snap.Errors)
	assert.Equal(t, string(errors.ErrCodeDiscoveryFailed), snap.Errors[0].Code)
	assert.Equal(t, models.StageFinding, snap.Errors[0].Stage)
}

func TestOrchestrator_TransientDiscoveryFailureIsRetried(t *testing.T) {
	finder := &fakeFinder{
		listings: emListings(),
		errs:     []error{errors.NewTransientCollaboratorError("elasticsearch", fmt.Errorf("timeout"))},
	}
	o, _ := testOrchestrator(t, finder, &fakeDrafter{})

	runID, err := o.Start(context.Background(), emPreferences())
	require.NoError(t, err)

	snap := waitTerminal(t, o, runID)
	assert.Equal(t, models.StageDone, snap.Stage)
	assert.Equal(t, models.RunStatusCompleted, snap.Status)
	finder.mu.Lock()
	assert.Equal(t, 2, finder.calls)
	finder.mu.Unlock()

	// The transient failure is still visible in the error list.
	require.NotEmpty(t, snap.Errors)
	assert.Equal(t, string(errors.ErrCodeTransientCollaborator), snap.Errors[0].Code)
}

func TestOrchestrator_CachedStageIsNotReRun(t *testing.T) {
	finder := &fakeFinder{errs: []error{fmt.Errorf("must not be called")}}
	o, _ := testOrchestrator(t, finder, &fakeDrafter{})

	ar := &activeRun{
		run: &models.PipelineRun{ID: "run-1", Preferences: emPreferences()},
		ctx: context.Background(),
	}
	require.NoError(t, o.cache.Put(context.Background(), "run-1", models.StageFinding, findingOutput{Listings: emListings()}))

	require.NoError(t, o.runFinding(context.Background(), ar))
	assert.Len(t, ar.listings, 3)
	finder.mu.Lock()
	assert.Zero(t, finder.calls)
	finder.mu.Unlock()
}

func TestOrchestrator_PartialOutreach(t *testing.T) {
	finder := &fakeFinder{listings: emListings()}
	drafter := &fakeDrafter{failFor: map[string]bool{"board:k8s-aws-2": true}}
	o, _ := testOrchestrator(t, finder, drafter)

	runID, err := o.Start(context.Background(), emPreferences())
	require.NoError(t, err)

	snap := waitTerminal(t, o, runID)
	assert.Equal(t, models.StageDone, snap.Stage)
	assert.Equal(t, models.RunStatusPartial, snap.Status)
	require.NotEmpty(t, snap.Errors)
}

func TestOrchestrator_CancelObservedAtStageBoundary(t *testing.T) {
	finder := &blockingFinder{started: make(chan struct{})}
	log := logger.NewNoOpLogger()
	pipeCfg, matchCfg := testConfigs()
	tr := tracker.New(config.TrackerConfig{}, log)
	o := NewOrchestrator(pipeCfg, matchCfg, Deps{
		Finder:   finder,
		Resumes:  fakeResumeLoader{},
		Chunker:  resume.NewChunker(resume.Config{MaxChars: 500, MinChars: 40}),
		Provider: wordProvider{},
		Drafter:  &fakeDrafter{},
		Tracker:  tr,
		Cache:    NewMemoryStageCache(),
	}, log)

	runID, err := o.Start(context.Background(), emPreferences())
	require.NoError(t, err)

	<-finder.started
	require.NoError(t, o.Cancel(runID))

	snap := waitTerminal(t, o, runID)
	assert.Equal(t, models.RunStatusCanceled, snap.Status)
}

type blockingFinder struct {
	started chan struct{}
	once    sync.Once
}

func (f *blockingFinder) Find(ctx context.Context, _ models.SearchPreferences) ([]models.JobListing, error) {
	f.once.Do(func() { close(f.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestOrchestrator_StartRejectsInvalidPreferences(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeFinder{}, &fakeDrafter{})

	_, err := o.Start(context.Background(), models.SearchPreferences{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
}

func TestOrchestrator_StatusUnknownRun(t *testing.T) {
	o, _ := testOrchestrator(t, &fakeFinder{}, &fakeDrafter{})
	_, err := o.Status("nope")
	assert.Error(t, err)
	assert.Error(t, o.Cancel("nope"))
}

func TestOrchestrator_MaxActiveRuns(t *testing.T) {
	finder := &fakeFinder{listings: emListings()}
	log := logger.NewNoOpLogger()
	pipeCfg, matchCfg := testConfigs()
	pipeCfg.MaxActiveRuns = 1
	tr := tracker.New(config.TrackerConfig{}, log)

	blockingDrafter := &slowDrafter{release: make(chan struct{})}
	o := NewOrchestrator(pipeCfg, matchCfg, Deps{
		Finder:   finder,
		Resumes:  fakeResumeLoader{},
		Chunker:  resume.NewChunker(resume.Config{MaxChars: 500, MinChars: 40}),
		Provider: wordProvider{},
		Drafter:  blockingDrafter,
		Tracker:  tr,
		Cache:    NewMemoryStageCache(),
	}, log)

	first, err := o.Start(context.Background(), emPreferences())
	require.NoError(t, err)

	_, err = o.Start(context.Background(), emPreferences())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max active runs")

	close(blockingDrafter.release)
	waitTerminal(t, o, first)
}

type slowDrafter struct {
	release chan struct{}
}

func (d *slowDrafter) Draft(ctx context.Context, job models.JobListing, _ string, _ models.MatchScore) (*outreach.Artifact, error) {
	select {
	case <-d.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &outreach.Artifact{JobID: job.ID()}, nil
}

func timeoutOrchestrator(t *testing.T, policy string, finder discovery.Finder) *Orchestrator {
	t.Helper()
	log := logger.NewNoOpLogger()
	_, matchCfg := testConfigs()
	tr := tracker.New(config.TrackerConfig{}, log)
	return NewOrchestrator(config.PipelineConfig{
		StageTimeout:  30,
		TimeoutPolicy: policy,
		OutreachTopN:  2,
	}, matchCfg, Deps{
		Finder:   finder,
		Resumes:  fakeResumeLoader{},
		Chunker:  resume.NewChunker(resume.Config{MaxChars: 500, MinChars: 40}),
		Provider: wordProvider{},
		Drafter:  &fakeDrafter{},
		Tracker:  tr,
		Cache:    NewMemoryStageCache(),
	}, log)
}

func TestOrchestrator_StageTimeoutFailPolicy(t *testing.T) {
	finder := &blockingFinder{started: make(chan struct{})}
	o := timeoutOrchestrator(t, PolicyFail, finder)

	runID, err := o.Start(context.Background(), emPreferences())
	require.NoError(t, err)

	snap := waitTerminal(t, o, runID)
	assert.Equal(t, models.StageFailed, snap.Stage)
	assert.Equal(t, models.RunStatusFailed, snap.Status)
	require.NotEmpty(t, snap.Errors)
	assert.Equal(t, string(errors.ErrCodeStageTimeout), snap.Errors[0].Code)
	assert.Equal(t, models.StageFinding, snap.Errors[0].Stage)
}

func TestOrchestrator_StageTimeoutContinuePartialPolicy(t *testing.T) {
	finder := &blockingFinder{started: make(chan struct{})}
	o := timeoutOrchestrator(t, PolicyContinuePartial, finder)

	runID, err := o.Start(context.Background(), emPreferences())
	require.NoError(t, err)

	// A timed-out FINDING yields zero listings, so the run ends no-results
	// rather than failed; the timeout is still on the error list.
	snap := waitTerminal(t, o, runID)
	assert.Equal(t, models.StageDone, snap.Stage)
	assert.Equal(t, models.RunStatusNoResults, snap.Status)
	require.NotEmpty(t, snap.Errors)
	assert.Equal(t, string(errors.ErrCodeStageTimeout), snap.Errors[0].Code)
}
