// Package service runs harvest passes: it lists repositories on the
// hosting service, scores the InnerSource ones and publishes the collection.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/innerscore/internal/adapters/hosting"
	"github.com/okian/innerscore/internal/adapters/manifest"
	"github.com/okian/innerscore/internal/adapters/mq/queue"
	"github.com/okian/innerscore/internal/adapters/mq/worker"
	"github.com/okian/innerscore/internal/adapters/output"
	"github.com/okian/innerscore/internal/domain/dedupe"
	"github.com/okian/innerscore/internal/domain/model"
	"github.com/okian/innerscore/internal/domain/scoring"
	"github.com/okian/innerscore/pkg/logger"
	"github.com/okian/innerscore/pkg/metrics"
)

const (
	defaultQueueSize  = 10_000
	defaultDedupeSize = 50_000

	skipNotInnerSource = "not_innersource"
)

// ManifestReader returns the manifest of a repository revision, or nil
// when the repository has none.
type ManifestReader interface {
	Read(ctx context.Context, repo string, lastModified time.Time) (*model.Manifest, error)
}

// Publisher receives the collection once the sinks have been written.
type Publisher interface {
	Replace(ctx context.Context, runID string, records []model.Repository) error
}

// Filter selects the repositories to harvest and fills the owner block.
type Filter struct {
	TagKey   string
	TagValue string
	Owner    model.Owner
}

func (f Filter) normalized() Filter {
	if strings.TrimSpace(f.TagKey) == "" {
		f.TagKey = "type"
	}
	if f.TagValue == "" {
		f.TagValue = "innersource"
	}
	if f.Owner == (model.Owner{}) {
		f.Owner = DefaultOwner
	}
	return f
}

func (f Filter) matches(tags map[string]string) bool {
	v, ok := tags[f.TagKey]
	return ok && v == f.TagValue
}

// Report summarizes one pass.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Listed     int           `json:"listed"`
	Duplicates int           `json:"duplicates"`
	Harvested  int           `json:"harvested"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration_ns"`
}

// Harvester runs harvest passes. Only one pass runs at a time.
type Harvester struct {
	hosting   hosting.Client
	manifests ManifestReader
	sink      output.Sink
	publisher Publisher
	scorer    scoring.Scorer

	workerCount int
	queueSize   int
	dedupeSize  int
	now         func() time.Time
	logger      logger.Logger

	filterMu sync.RWMutex
	filter   Filter

	running atomic.Bool
}

// NewHarvester creates a Harvester. sink and publisher may be nil.
func NewHarvester(client hosting.Client, manifests ManifestReader, sink output.Sink, publisher Publisher, opts ...Option) *Harvester {
	h := &Harvester{
		hosting:     client,
		manifests:   manifests,
		sink:        sink,
		publisher:   publisher,
		scorer:      scoring.NewEngine(),
		workerCount: runtime.NumCPU() * 4,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		now:         time.Now,
		logger:      logger.Nop(),
		filter:      Filter{}.normalized(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetFilter swaps the filter used by subsequent passes.
func (h *Harvester) SetFilter(f Filter) {
	f = f.normalized()
	h.filterMu.Lock()
	h.filter = f
	h.filterMu.Unlock()
}

// Filter returns the current filter.
func (h *Harvester) Filter() Filter {
	h.filterMu.RLock()
	defer h.filterMu.RUnlock()
	return h.filter
}

// Running reports whether a pass is in progress.
func (h *Harvester) Running() bool {
	return h.running.Load()
}

// Run executes one pass. A listing failure aborts the pass; failures of
// single repositories are logged, counted and left out of the collection.
func (h *Harvester) Run(ctx context.Context) (Report, error) {
	if !h.running.CompareAndSwap(false, true) {
		return Report{}, ErrPassRunning
	}
	defer h.running.Store(false)

	now := h.now()
	rep := Report{RunID: uuid.NewString(), StartedAt: now}
	log := h.logger.With(logger.String("run_id", rep.RunID))
	start := time.Now()

	finish := func(result string) {
		rep.Duration = time.Since(start)
		metrics.RecordHarvestRun(result, float64(rep.Duration.Milliseconds()))
	}

	log.Info(ctx, "harvest pass started")

	names, err := h.hosting.ListRepositories(ctx)
	if err != nil {
		finish("error")
		return rep, fmt.Errorf("%w: %w", ErrListRepositories, err)
	}
	rep.Listed = len(names)
	metrics.RecordRepositoriesListed(len(names))

	p := &pass{
		harvester: h,
		runID:     rep.RunID,
		now:       now,
		filter:    h.Filter(),
		logger:    log,
	}
	records, err := h.process(ctx, p, names, &rep)
	if err != nil {
		finish("aborted")
		return rep, err
	}

	if err := h.publish(ctx, rep.RunID, records); err != nil {
		finish("error")
		return rep, err
	}

	finish("success")
	log.Info(ctx, "harvest pass finished",
		logger.Int("listed", rep.Listed),
		logger.Int("harvested", rep.Harvested),
		logger.Int("skipped", rep.Skipped),
		logger.Int("failed", rep.Failed),
		logger.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// process fans the listing out to a worker pool and returns the
// collected records sorted by name.
func (h *Harvester) process(ctx context.Context, p *pass, names []hosting.RepositoryName, rep *Report) ([]model.Repository, error) {
	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(h.dedupeSize))
	q := queue.NewInMemoryQueue(queue.WithCapacity(h.queueSize))
	coll := &collector{}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := worker.NewPool(h.workerCount, q, p, coll, worker.WithPoolLogger(p.logger.Named("worker")))
	pool.Start(workerCtx)

	for i, n := range names {
		if seen.SeenAndRecord(ctx, n.RepositoryName) {
			rep.Duplicates++
			continue
		}
		job := model.Job{RunID: p.runID, Name: n.RepositoryName, Seq: i}
		if err := q.EnqueueWait(ctx, job); err != nil {
			_ = q.Close()
			return nil, fmt.Errorf("enqueueing %s: %w", n.RepositoryName, err)
		}
	}
	_ = q.Close()

	if err := pool.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for workers: %w", err)
	}

	records, skipped, failed := coll.result()
	rep.Harvested = len(records)
	rep.Skipped = skipped
	rep.Failed = failed
	return records, nil
}

func (h *Harvester) publish(ctx context.Context, runID string, records []model.Repository) error {
	var errs []error
	if h.sink != nil {
		if err := h.sink.Write(ctx, runID, records); err != nil {
			errs = append(errs, err)
		}
	}
	// The store follows the pass even when a sink failed so the API
	// serves what was harvested.
	if h.publisher != nil {
		if err := h.publisher.Replace(ctx, runID, records); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// pass is the per-run state shared by the workers.
type pass struct {
	harvester *Harvester
	runID     string
	now       time.Time
	filter    Filter
	logger    logger.Logger
}

// Process implements worker.Processor.
func (p *pass) Process(ctx context.Context, job model.Job) (*model.Repository, error) {
	h := p.harvester

	md, err := h.hosting.GetRepository(ctx, job.Name)
	if err != nil {
		return nil, err
	}

	tags, err := h.hosting.ListTags(ctx, md.Arn)
	if err != nil {
		return nil, err
	}
	if !p.filter.matches(tags) {
		metrics.RecordRepositorySkipped(skipNotInnerSource)
		return nil, fmt.Errorf("%w: %s has no tag %s=%s", worker.ErrSkipped, job.Name, p.filter.TagKey, p.filter.TagValue)
	}

	branches, err := h.hosting.CountBranches(ctx, job.Name)
	if err != nil {
		return nil, err
	}

	rec := fromMetadata(md)
	rec.ForksCount = branches
	rec.Owner = p.filter.Owner

	if rec.Score, err = h.scorer.Score(&rec, p.now); err != nil {
		return nil, fmt.Errorf("scoring %s: %w", job.Name, err)
	}

	m, err := h.manifests.Read(ctx, job.Name, md.LastModifiedDate)
	switch {
	case errors.Is(err, manifest.ErrInvalidManifest):
		p.logger.Warn(ctx, "ignoring invalid manifest", logger.String("repo", job.Name), logger.Error(err))
		m = nil
	case err != nil:
		return nil, err
	}

	if m.IsEmpty() {
		rec.Manifest = model.EmptyManifest()
	} else {
		rec.Manifest = m
		rec.Language = m.Language
		rec.License = m.License
		rec.Topics = append([]string(nil), m.Topics...)

		score, err := h.scorer.Score(&rec, p.now)
		if err != nil {
			return nil, fmt.Errorf("scoring %s with manifest: %w", job.Name, err)
		}
		m.Score = &score
		rec.Score = score
	}

	metrics.RecordRepositoryHarvested(rec.Score)
	return &rec, nil
}

// fromMetadata maps hosting metadata to a portal record. The hosting
// service has no stars, watchers or issues; those stay empty.
func fromMetadata(md hosting.Metadata) model.Repository {
	return model.Repository{
		ID:            md.RepositoryID,
		Name:          md.RepositoryName,
		FullName:      md.RepositoryName,
		HTMLURL:       md.CloneURLHTTP,
		Description:   md.RepositoryDescription,
		CreatedAt:     md.CreationDate,
		UpdatedAt:     md.LastModifiedDate,
		PushedAt:      md.LastModifiedDate,
		DefaultBranch: md.DefaultBranch,
	}
}

// collector gathers worker results for one pass.
type collector struct {
	mu      sync.Mutex
	records []model.Repository
	skipped int
	failed  int
}

// Collect implements worker.Collector.
func (c *collector) Collect(_ context.Context, r worker.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case r.Err == nil && r.Record != nil:
		c.records = append(c.records, *r.Record)
	case r.Skipped():
		c.skipped++
	default:
		c.failed++
		metrics.RecordRepositoryFailed()
	}
}

func (c *collector) result() ([]model.Repository, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Repository, len(c.records))
	copy(out, c.records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, c.skipped, c.failed
}
