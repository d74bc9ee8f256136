// Package engine is the knowledge engine facade: it owns the live slot set,
// the inverted index, and the single reader/writer lock that serialises
// index mutation against searches and questions.
//
// The engine holds no durable state of its own. The slot store is the source
// of truth, and the index is rebuilt from it at startup or whenever a
// consistency violation is detected.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/memoslot/memoslot/internal/cache"
	"github.com/memoslot/memoslot/internal/index"
	"github.com/memoslot/memoslot/internal/merge"
	"github.com/memoslot/memoslot/internal/nlq"
	"github.com/memoslot/memoslot/internal/search"
	"github.com/memoslot/memoslot/internal/slot"
	"github.com/memoslot/memoslot/internal/store"
	"github.com/memoslot/memoslot/pkg/config"
	apperrors "github.com/memoslot/memoslot/pkg/errors"
	"github.com/memoslot/memoslot/pkg/kafka"
	"github.com/memoslot/memoslot/pkg/metrics"
	"github.com/memoslot/memoslot/pkg/resilience"
	"github.com/memoslot/memoslot/pkg/tracing"
)

// EventPublisher publishes engine events for downstream collaborators.
// *kafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// SlotMergedEvent is announced after a merge has been persisted.
type SlotMergedEvent struct {
	Target         string    `json:"target"`
	Sources        []string  `json:"sources"`
	KeptCount      int       `json:"kept_count"`
	DroppedCount   int       `json:"dropped_count"`
	SourcesDeleted []string  `json:"sources_deleted,omitempty"`
	MergedAt       time.Time `json:"merged_at"`
}

// Options carries the engine's optional collaborators and tuning.
type Options struct {
	Cache       *cache.SearchCache
	Metrics     *metrics.Metrics
	MergeEvents EventPublisher
	Search      config.SearchConfig
	Merge       config.MergeConfig
}

// Engine coordinates search, question answering, and slot consolidation over
// one in-memory corpus.
type Engine struct {
	mu        sync.RWMutex
	slots     map[string]*slot.Slot
	idx       *index.Index
	eval      *search.Evaluator
	questions *nlq.Processor

	store       store.SlotStore
	cache       *cache.SearchCache
	metrics     *metrics.Metrics
	mergeEvents EventPublisher
	searchCfg   config.SearchConfig
	mergeCfg    config.MergeConfig
	logger      *slog.Logger
}

// New creates an Engine over the given slot store. Call Load before serving.
func New(st store.SlotStore, opts Options) *Engine {
	if opts.Search.MaxResults <= 0 {
		opts.Search.MaxResults = 100
	}
	if opts.Search.DefaultLimit <= 0 {
		opts.Search.DefaultLimit = 20
	}
	if opts.Search.QuestionLimit <= 0 {
		opts.Search.QuestionLimit = 5
	}
	if opts.Merge.DefaultThreshold <= 0 {
		opts.Merge.DefaultThreshold = merge.DefaultThreshold
	}
	e := &Engine{
		slots:       make(map[string]*slot.Slot),
		idx:         index.New(),
		store:       st,
		cache:       opts.Cache,
		metrics:     opts.Metrics,
		mergeEvents: opts.MergeEvents,
		searchCfg:   opts.Search,
		mergeCfg:    opts.Merge,
		logger:      slog.Default().With("component", "engine"),
	}
	e.eval = search.NewEvaluator(e.idx, e, opts.Search.SnippetRadius)
	e.questions = nlq.NewProcessor(e.eval)
	return e
}

// Entry implements search.EntryProvider. Callers already hold the engine
// lock for the duration of the evaluation.
func (e *Engine) Entry(slotName, entryID string) (*slot.Slot, *slot.Entry, bool) {
	s, ok := e.slots[slotName]
	if !ok {
		return nil, nil, false
	}
	entry := s.Entry(entryID)
	if entry == nil {
		return nil, nil, false
	}
	return s, entry, true
}

// Load pulls every slot from the store and builds the index.
func (e *Engine) Load(ctx context.Context) error {
	slots, err := e.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading slots from store: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slots = make(map[string]*slot.Slot, len(slots))
	for _, s := range slots {
		e.slots[s.Name] = s
	}
	if err := e.rebuildLocked("startup"); err != nil {
		return err
	}
	e.logger.Info("engine loaded",
		"slots", len(e.slots),
		"entries", e.idx.TotalEntries(),
		"terms", e.idx.TermCount(),
	)
	return nil
}

// Search evaluates a boolean query and returns ranked results.
func (e *Engine) Search(ctx context.Context, query string, filters search.Filters) ([]search.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "search")
	defer func() {
		span.End()
		span.Log()
	}()
	span.SetAttr("query", query)

	if filters.MaxResults == 0 {
		filters.MaxResults = e.searchCfg.DefaultLimit
	}
	if filters.MaxResults < 0 || filters.MaxResults > e.searchCfg.MaxResults {
		return nil, apperrors.Newf(apperrors.ErrInvalidFilter,
			"max results must be in [1,%d], got %d", e.searchCfg.MaxResults, filters.MaxResults)
	}

	start := time.Now()
	compute := func() ([]search.Result, error) {
		return e.withConsistencyRetry(ctx, func() ([]search.Result, error) {
			e.mu.RLock()
			defer e.mu.RUnlock()
			return e.eval.Evaluate(query, filters)
		})
	}

	var results []search.Result
	var err error
	if e.cache != nil {
		var cached bool
		results, cached, err = e.cache.GetOrCompute(ctx, query, filters, compute)
		if e.metrics != nil && err == nil {
			if cached {
				e.metrics.CacheHitsTotal.Inc()
			} else {
				e.metrics.CacheMissesTotal.Inc()
			}
		}
	} else {
		results, err = compute()
	}
	e.observeSearch("boolean", start, results, err)
	if err != nil {
		return nil, err
	}
	span.SetAttr("results", len(results))
	return results, nil
}

// Ask answers a free-form natural-language question.
func (e *Engine) Ask(ctx context.Context, question string, maxResults int) ([]search.Result, error) {
	ctx, span := tracing.StartSpan(ctx, "question")
	defer func() {
		span.End()
		span.Log()
	}()

	if maxResults == 0 {
		maxResults = e.searchCfg.QuestionLimit
	}
	if maxResults < 0 || maxResults > e.searchCfg.MaxResults {
		return nil, apperrors.Newf(apperrors.ErrInvalidFilter,
			"max results must be in [1,%d], got %d", e.searchCfg.MaxResults, maxResults)
	}

	start := time.Now()
	results, err := e.withConsistencyRetry(ctx, func() ([]search.Result, error) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		results, qtype, err := e.questions.Answer(question, maxResults)
		if err == nil && e.metrics != nil {
			e.metrics.QuestionsTotal.WithLabelValues(string(qtype)).Inc()
		}
		span.SetAttr("question_type", string(qtype))
		return results, err
	})
	e.observeSearch("question", start, results, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// NewMergeRequest builds a Request with the configured default threshold.
func (e *Engine) NewMergeRequest(sources []string, target string) *merge.Request {
	return &merge.Request{
		Sources:   sources,
		Target:    target,
		Threshold: e.mergeCfg.DefaultThreshold,
	}
}

// MergePreview computes the merge outcome without mutating any storage.
func (e *Engine) MergePreview(ctx context.Context, req *merge.Request) (*merge.Preview, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sources, err := e.validateMergeLocked(req)
	if err != nil {
		if e.metrics != nil {
			e.metrics.MergesTotal.WithLabelValues("preview", "invalid").Inc()
		}
		return nil, err
	}
	plan := merge.BuildPlan(sources, req.Threshold)
	if e.metrics != nil {
		e.metrics.MergesTotal.WithLabelValues("preview", "ok").Inc()
	}
	return merge.BuildPreview(req, plan, e.mergeCfg.PreviewSample), nil
}

// MergeExecute consolidates the sources into the target slot and persists it.
// The write lock is held for the whole merge so searches never observe a
// half-merged index. Source deletion is the last step; its failure is
// reported but never rolls back the already-written target.
func (e *Engine) MergeExecute(ctx context.Context, req *merge.Request) (*merge.Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "merge-execute")
	defer func() {
		span.End()
		span.Log()
	}()
	span.SetAttr("target", req.Target)

	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	sources, err := e.validateMergeLocked(req)
	if err != nil {
		if e.metrics != nil {
			e.metrics.MergesTotal.WithLabelValues("execute", "invalid").Inc()
		}
		return nil, err
	}

	plan := merge.BuildPlan(sources, req.Threshold)
	target := merge.TargetSlot(req, plan, sources)

	if err := resilience.Retry(ctx, "save-merged-slot", resilience.RetryConfig{}, func() error {
		return e.store.SaveSlot(ctx, target)
	}); err != nil {
		if e.metrics != nil {
			e.metrics.MergesTotal.WithLabelValues("execute", "error").Inc()
		}
		return nil, fmt.Errorf("persisting merged slot %s: %w", req.Target, err)
	}

	// Index the new target. If a slot under the target name existed, its
	// old entries leave the index first.
	if old, ok := e.slots[req.Target]; ok {
		for i := range old.Entries {
			if e.idx.Contains(old.Name, old.Entries[i].ID) {
				if err := e.idx.RemoveEntry(old.Name, old.Entries[i].ID); err != nil {
					e.recoverIndexLocked(err)
					break
				}
			}
		}
	}
	e.slots[req.Target] = target
	for i := range target.Entries {
		if err := e.idx.AddEntry(target.Name, &target.Entries[i]); err != nil {
			e.recoverIndexLocked(err)
			break
		}
	}

	outcome := &merge.Outcome{
		Target:       req.Target,
		KeptCount:    len(plan.Kept),
		DroppedCount: len(plan.Dropped),
		Tags:         plan.Tags,
		Group:        plan.Group,
	}

	var deleteErr error
	if req.DeleteSources {
		deleteErr = resilience.Retry(ctx, "delete-merged-sources", resilience.RetryConfig{}, func() error {
			return e.store.DeleteSlots(ctx, req.Sources)
		})
		if deleteErr == nil {
			for _, name := range req.Sources {
				e.dropSlotLocked(name)
			}
			outcome.SourcesDeleted = append([]string(nil), req.Sources...)
		} else {
			e.logger.Error("merged source deletion failed, target retained",
				"target", req.Target,
				"sources", req.Sources,
				"error", deleteErr,
			)
		}
	}

	e.invalidateCache(ctx)
	e.publishMerged(ctx, req, outcome)
	e.observeMerge(start, outcome)
	e.logger.Info("merge executed",
		"target", req.Target,
		"sources", req.Sources,
		"kept", outcome.KeptCount,
		"dropped", outcome.DroppedCount,
		"sources_deleted", len(outcome.SourcesDeleted) > 0,
	)

	if deleteErr != nil {
		return outcome, fmt.Errorf("deleting merged sources: %w", deleteErr)
	}
	return outcome, nil
}

// ApplyEntry indexes a new or replaced entry. The slot is created on first
// reference. An entry that already exists is removed from the index before
// re-indexing, keeping add/remove pairs balanced.
func (e *Engine) ApplyEntry(ctx context.Context, slotName string, entry slot.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[slotName]
	if !ok {
		s = &slot.Slot{Name: slotName}
		e.slots[slotName] = s
	}
	if existing := s.Entry(entry.ID); existing != nil {
		if e.idx.Contains(slotName, entry.ID) {
			if err := e.idx.RemoveEntry(slotName, entry.ID); err != nil {
				return e.recoverIndexLocked(err)
			}
		}
		*existing = entry
	} else {
		if entry.Seq == 0 {
			entry.Seq = len(s.Entries)
		}
		s.Entries = append(s.Entries, entry)
	}
	if err := e.idx.AddEntry(slotName, &entry); err != nil {
		return e.recoverIndexLocked(err)
	}
	if e.metrics != nil {
		e.metrics.EntriesIndexedTotal.Inc()
		e.updateIndexGauges()
	}
	e.invalidateCache(ctx)
	return nil
}

// RemoveEntry removes an entry from its slot and the index.
func (e *Engine) RemoveEntry(ctx context.Context, slotName, entryID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slots[slotName]
	if !ok {
		return apperrors.Newf(apperrors.ErrSlotNotFound, "slot %q", slotName)
	}
	found := false
	for i := range s.Entries {
		if s.Entries[i].ID == entryID {
			s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return apperrors.Newf(apperrors.ErrSlotNotFound, "entry %s/%s", slotName, entryID)
	}
	if e.idx.Contains(slotName, entryID) {
		if err := e.idx.RemoveEntry(slotName, entryID); err != nil {
			return e.recoverIndexLocked(err)
		}
	}
	if e.metrics != nil {
		e.metrics.EntriesRemovedTotal.Inc()
		e.updateIndexGauges()
	}
	e.invalidateCache(ctx)
	return nil
}

// DropSlots removes whole slots from the corpus, e.g. when the storage
// collaborator announces a deletion.
func (e *Engine) DropSlots(ctx context.Context, names []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range names {
		e.dropSlotLocked(name)
	}
	e.invalidateCache(ctx)
}

// Rebuild discards the index and rebuilds it from the live slot set.
func (e *Engine) Rebuild(trigger string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildLocked(trigger)
}

// SlotSnapshot returns a deep copy of one live slot, safe to persist or
// inspect without holding the engine lock.
func (e *Engine) SlotSnapshot(name string) (*slot.Slot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.slots[name]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Stats reports corpus size for health checks.
func (e *Engine) Stats() (slots, entries, terms int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.slots), e.idx.TotalEntries(), e.idx.TermCount()
}

func (e *Engine) validateMergeLocked(req *merge.Request) ([]*slot.Slot, error) {
	if err := merge.Validate(req, func(name string) bool {
		_, ok := e.slots[name]
		return ok
	}); err != nil {
		return nil, err
	}
	for _, name := range req.Sources {
		if name == req.Target {
			return nil, apperrors.Newf(apperrors.ErrMergeValidation,
				"target slot %q is also a source", req.Target)
		}
	}
	sources := make([]*slot.Slot, 0, len(req.Sources))
	for _, name := range req.Sources {
		sources = append(sources, e.slots[name])
	}
	return sources, nil
}

func (e *Engine) rebuildLocked(trigger string) error {
	if err := e.idx.Rebuild(e.slots); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.IndexRebuildsTotal.WithLabelValues(trigger).Inc()
		e.updateIndexGauges()
	}
	e.logger.Info("index rebuilt",
		"trigger", trigger,
		"entries", e.idx.TotalEntries(),
		"terms", e.idx.TermCount(),
	)
	return nil
}

// recoverIndexLocked handles an index consistency violation: log, rebuild
// from the live slots, and report the original error if the rebuild itself
// fails.
func (e *Engine) recoverIndexLocked(cause error) error {
	if !apperrors.Is(cause, apperrors.ErrIndexConsistency) {
		return cause
	}
	e.logger.Error("index consistency violation, rebuilding", "error", cause)
	if err := e.rebuildLocked("consistency"); err != nil {
		return fmt.Errorf("index rebuild after consistency violation: %w", err)
	}
	return nil
}

// withConsistencyRetry runs a read operation, and on an index consistency
// error rebuilds the index and retries exactly once.
func (e *Engine) withConsistencyRetry(ctx context.Context, fn func() ([]search.Result, error)) ([]search.Result, error) {
	results, err := fn()
	if err == nil || !apperrors.Is(err, apperrors.ErrIndexConsistency) {
		return results, err
	}
	e.logger.Error("index consistency violation during read, rebuilding", "error", err)
	if rebuildErr := e.Rebuild("consistency"); rebuildErr != nil {
		return nil, fmt.Errorf("index rebuild after consistency violation: %w", rebuildErr)
	}
	return fn()
}

func (e *Engine) dropSlotLocked(name string) {
	s, ok := e.slots[name]
	if !ok {
		return
	}
	for i := range s.Entries {
		if e.idx.Contains(name, s.Entries[i].ID) {
			if err := e.idx.RemoveEntry(name, s.Entries[i].ID); err != nil {
				e.logger.Error("removing entry during slot drop", "slot", name, "error", err)
			}
		}
	}
	delete(e.slots, name)
	if e.metrics != nil {
		e.updateIndexGauges()
	}
}

func (e *Engine) invalidateCache(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx); err != nil {
		e.logger.Error("search cache invalidation failed", "error", err)
	}
}

func (e *Engine) publishMerged(ctx context.Context, req *merge.Request, outcome *merge.Outcome) {
	if e.mergeEvents == nil {
		return
	}
	event := kafka.Event{
		Key: req.Target,
		Value: SlotMergedEvent{
			Target:         req.Target,
			Sources:        req.Sources,
			KeptCount:      outcome.KeptCount,
			DroppedCount:   outcome.DroppedCount,
			SourcesDeleted: outcome.SourcesDeleted,
			MergedAt:       time.Now().UTC(),
		},
	}
	if err := e.mergeEvents.Publish(ctx, event); err != nil {
		e.logger.Error("publishing slot-merged event failed",
			"target", req.Target,
			"error", err,
		)
	}
}

func (e *Engine) observeSearch(kind string, start time.Time, results []search.Result, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		e.metrics.SearchesTotal.WithLabelValues("error").Inc()
	case len(results) == 0:
		e.metrics.SearchesTotal.WithLabelValues("zero_result").Inc()
	default:
		e.metrics.SearchesTotal.WithLabelValues("hit").Inc()
	}
	if err == nil {
		e.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
}

func (e *Engine) observeMerge(start time.Time, outcome *merge.Outcome) {
	if e.metrics == nil {
		return
	}
	e.metrics.MergesTotal.WithLabelValues("execute", "ok").Inc()
	e.metrics.MergeEntriesDropped.Add(float64(outcome.DroppedCount))
	e.metrics.MergeDuration.Observe(time.Since(start).Seconds())
	e.updateIndexGauges()
}

func (e *Engine) updateIndexGauges() {
	e.metrics.IndexTerms.Set(float64(e.idx.TermCount()))
	e.metrics.IndexEntries.Set(float64(e.idx.TotalEntries()))
}
