package facematch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/photostore"
	"golang.org/x/sync/errgroup"
)

// Subject is the newly photographed entity a run scans the corpus for.
// Photo is used when set; otherwise the bytes are read from PhotoRef.
type Subject struct {
	ID       string
	PhotoRef string
	Photo    []byte
}

// Engine compares one source photo against a set of candidates.
type Engine struct {
	photos      photostore.Accessor
	policy      Policy
	cache       *FeatureCache
	skips       SkipRecorder
	logger      *slog.Logger
	concurrency int
	timeout     time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFeatureCache makes the engine look up vectors by photo reference before reading bytes.
func WithFeatureCache(c *FeatureCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithSkipRecorder routes skipped candidates to r.
func WithSkipRecorder(r SkipRecorder) EngineOption {
	return func(e *Engine) { e.skips = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithConcurrency sets the number of candidates processed at once.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTimeout bounds a single run. Zero disables the bound.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine creates an engine reading candidate photos through photos.
func NewEngine(photos photostore.Accessor, policy Policy, opts ...EngineOption) *Engine {
	e := &Engine{
		photos:      photos,
		policy:      policy,
		logger:      slog.Default(),
		concurrency: constants.DefaultScanConcurrency,
		timeout:     constants.DefaultScanTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the match policy the engine applies.
func (e *Engine) Policy() Policy {
	return e.policy
}

// FindMatches returns every candidate whose photo clears the match policy.
func (e *Engine) FindMatches(ctx context.Context, source Subject, candidates []database.CandidateRecord) ([]MatchResult, error) {
	res, err := e.Scan(ctx, source, candidates)
	if res == nil {
		return nil, err
	}
	return res.Matches, err
}

// Scan runs one cross-reference pass and reports matches together with skip counts.
//
// Candidates that have no photo, cannot be read or yield no feature vector are
// skipped and never fail the run. When the run timeout expires the matches
// found so far are returned and the unprocessed candidates count as timeout
// skips. An error is only returned when ctx itself is cancelled.
func (e *Engine) Scan(ctx context.Context, source Subject, candidates []database.CandidateRecord) (*ScanResult, error) {
	acc := &accumulator{
		engine: e,
		result: &ScanResult{
			Candidates: len(candidates),
			Skipped:    make(map[SkipReason]int),
		},
	}

	scanCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	sourceVec, ok := e.sourceVector(scanCtx, source)
	if !ok {
		if err := ctx.Err(); err != nil {
			return acc.result, fmt.Errorf("cross-reference of %s cancelled: %w", source.ID, err)
		}
		if scanCtx.Err() != nil {
			// The source read outlived the run timeout; nothing was compared.
			for _, c := range candidates {
				if c.PhotoRef == "" {
					acc.skip(c.ID, SkipNoPhoto)
				} else {
					acc.skip(c.ID, SkipTimeout)
				}
			}
			acc.result.TimedOut = true
			e.logger.Warn("cross-reference run timed out reading the source photo",
				"source_id", source.ID,
				"timeout", e.timeout)
			return acc.result, nil
		}
		e.logger.Debug("source photo has no feature vector", "source_id", source.ID)
		acc.result.SourceAbsent = true
		return acc.result, nil
	}

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)

	for _, c := range candidates {
		if c.PhotoRef == "" {
			acc.skip(c.ID, SkipNoPhoto)
			continue
		}
		if scanCtx.Err() != nil {
			acc.skip(c.ID, SkipTimeout)
			continue
		}

		g.Go(func() error {
			if scanCtx.Err() != nil {
				acc.skip(c.ID, SkipTimeout)
				return nil
			}

			vec, reason := e.candidateVector(scanCtx, c.PhotoRef)
			if reason != "" {
				acc.skip(c.ID, reason)
				return nil
			}

			score := Score(sourceVec, vec)
			acc.compared(MatchResult{SourceID: source.ID, CandidateID: c.ID, Score: score}, e.policy.IsMatch(score))
			return nil
		})
	}

	// Workers never return errors; skips are recorded instead.
	_ = g.Wait()

	sort.Slice(acc.result.Matches, func(i, j int) bool {
		return acc.result.Matches[i].CandidateID < acc.result.Matches[j].CandidateID
	})

	if err := ctx.Err(); err != nil {
		return acc.result, fmt.Errorf("cross-reference of %s cancelled: %w", source.ID, err)
	}
	if scanCtx.Err() != nil {
		acc.result.TimedOut = true
		e.logger.Warn("cross-reference run timed out",
			"source_id", source.ID,
			"compared", acc.result.Compared,
			"skipped", acc.result.SkippedTotal(),
			"timeout", e.timeout)
	}
	return acc.result, nil
}

func (e *Engine) sourceVector(ctx context.Context, source Subject) (FeatureVector, bool) {
	if len(source.Photo) > 0 {
		vec, ok := Extract(source.Photo)
		if ok && source.PhotoRef != "" && e.cache != nil {
			e.cache.Put(ctx, source.PhotoRef, vec)
		}
		return vec, ok
	}
	if source.PhotoRef == "" {
		return nil, false
	}
	vec, reason := e.candidateVector(ctx, source.PhotoRef)
	return vec, reason == ""
}

// Vector resolves the feature vector of a stored photo, consulting the
// feature cache first. A non-empty reason means no vector is available.
func (e *Engine) Vector(ctx context.Context, ref string) (FeatureVector, SkipReason) {
	if ref == "" {
		return nil, SkipNoPhoto
	}
	return e.candidateVector(ctx, ref)
}

// candidateVector resolves the vector of a stored photo. A non-empty reason means no vector.
func (e *Engine) candidateVector(ctx context.Context, ref string) (FeatureVector, SkipReason) {
	if e.cache != nil {
		if vec, ok := e.cache.Get(ctx, ref); ok {
			return vec, ""
		}
	}

	data, err := e.photos.Read(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			return nil, SkipTimeout
		}
		if !errors.Is(err, photostore.ErrNotFound) {
			e.logger.Debug("photo read failed", "photo_ref", ref, "error", err)
		}
		return nil, SkipUnreadable
	}

	vec, ok := Extract(data)
	if !ok {
		return nil, SkipAbsentFeature
	}
	if e.cache != nil {
		e.cache.Put(ctx, ref, vec)
	}
	return vec, ""
}

// accumulator collects worker outcomes for one run.
type accumulator struct {
	engine *Engine
	mu     sync.Mutex
	result *ScanResult
}

func (a *accumulator) skip(candidateID string, reason SkipReason) {
	a.mu.Lock()
	a.result.Skipped[reason]++
	a.mu.Unlock()

	if a.engine.skips != nil {
		a.engine.skips.RecordSkip(reason)
	}
	a.engine.logger.Debug("candidate skipped", "candidate_id", candidateID, "reason", string(reason))
}

func (a *accumulator) compared(m MatchResult, matched bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.result.Compared++
	if matched {
		a.result.Matches = append(a.result.Matches, m)
	}
}
