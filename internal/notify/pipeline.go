package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/facematch"
)

// Run directions, also used as metric labels.
const (
	DirectionReport   = "report"
	DirectionSighting = "sighting"
)

// RunSummary reports the outcome of one cross-reference run.
type RunSummary struct {
	RunID      string                       `json:"run_id"`
	Direction  string                       `json:"direction"`
	SourceID   string                       `json:"source_id"`
	Candidates int                          `json:"candidates"`
	Compared   int                          `json:"compared"`
	Matches    int                          `json:"matches"`
	Notified   int                          `json:"notified"`
	Duplicates int                          `json:"duplicates"`
	Failed     int                          `json:"failed"`
	Skipped    map[facematch.SkipReason]int `json:"skipped,omitempty"`
	TimedOut   bool                         `json:"timed_out,omitempty"`
	Duration   time.Duration                `json:"duration"`
}

// Pipeline wires the corpus, the matching engine, deduplication and dispatch
// for each photo upload.
type Pipeline struct {
	corpus     database.CorpusReader
	reports    database.ReportReader
	engine     *facematch.Engine
	dedup      *Deduplicator
	dispatcher *Dispatcher
	recorder   Recorder
	logger     *slog.Logger
}

// NewPipeline creates a pipeline. reports is only needed for sighting
// notifications and may be nil.
func NewPipeline(
	corpus database.CorpusReader,
	reports database.ReportReader,
	engine *facematch.Engine,
	dedup *Deduplicator,
	dispatcher *Dispatcher,
	recorder Recorder,
	logger *slog.Logger,
) *Pipeline {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		corpus:     corpus,
		reports:    reports,
		engine:     engine,
		dedup:      dedup,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger,
	}
}

// Dispatcher returns the pipeline's dispatcher.
func (p *Pipeline) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// OnReportPhoto scans every sighting with a photo for the new report's photo.
// photo may be nil, in which case the report's PhotoRef is read.
func (p *Pipeline) OnReportPhoto(ctx context.Context, report *database.MissingPerson, photo []byte) (*RunSummary, error) {
	return p.run(ctx, DirectionReport, report.Candidate(), photo, p.corpus.SightingCandidates)
}

// OnSightingPhoto scans every active report with a photo for the new sighting's photo.
func (p *Pipeline) OnSightingPhoto(ctx context.Context, sighting *database.Sighting, photo []byte) (*RunSummary, error) {
	return p.run(ctx, DirectionSighting, sighting.Candidate(), photo, func(ctx context.Context) ([]database.CandidateRecord, error) {
		return p.corpus.ReportCandidates(ctx, true)
	})
}

// OnSightingCreated handles a new sighting: the owner of the report it was
// filed against gets a sighting notification, then the photo is cross-referenced.
// A failed sighting notification is logged and does not stop matching.
func (p *Pipeline) OnSightingCreated(ctx context.Context, sighting *database.Sighting, photo []byte) (*RunSummary, error) {
	if sighting.MissingPersonID != "" {
		if err := p.notifySighting(ctx, sighting); err != nil {
			p.logger.Warn("sighting notification failed",
				"sighting_id", sighting.ID,
				"missing_person_id", sighting.MissingPersonID,
				"error", err)
		}
	}

	if sighting.PhotoRef == "" && len(photo) == 0 {
		return &RunSummary{Direction: DirectionSighting, SourceID: sighting.ID}, nil
	}
	return p.OnSightingPhoto(ctx, sighting, photo)
}

func (p *Pipeline) notifySighting(ctx context.Context, sighting *database.Sighting) error {
	if p.reports == nil {
		return errors.New("no report reader configured")
	}
	report, err := p.reports.GetReport(ctx, sighting.MissingPersonID)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	_, err = p.dispatcher.DispatchSighting(ctx, report, sighting)
	return err
}

func (p *Pipeline) run(
	ctx context.Context,
	direction string,
	source database.CandidateRecord,
	photo []byte,
	loadCandidates func(context.Context) ([]database.CandidateRecord, error),
) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Direction: direction,
		SourceID:  source.ID,
	}
	logger := p.logger.With("run_id", summary.RunID, "direction", direction, "source_id", source.ID)
	defer func() {
		summary.Duration = time.Since(start)
		p.recorder.ObserveRun(direction, summary.Duration)
	}()

	candidates, err := loadCandidates(ctx)
	if err != nil {
		return summary, fmt.Errorf("load candidates: %w", err)
	}

	byID := make(map[string]database.CandidateRecord, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	res, err := p.engine.Scan(ctx, facematch.Subject{ID: source.ID, PhotoRef: source.PhotoRef, Photo: photo}, candidates)
	if res != nil {
		summary.Candidates = res.Candidates
		summary.Compared = res.Compared
		summary.Matches = len(res.Matches)
		summary.Skipped = res.Skipped
		summary.TimedOut = res.TimedOut
	}
	if err != nil {
		return summary, err
	}
	p.recorder.RecordMatches(len(res.Matches))

	matches := make([]Match, 0, len(res.Matches))
	for _, r := range res.Matches {
		m, ok := Orient(source, byID[r.CandidateID], r.Score)
		if !ok {
			logger.Warn("match between records of the same kind ignored", "candidate_id", r.CandidateID)
			continue
		}
		matches = append(matches, m)
	}

	fresh, err := p.dedup.FilterNew(ctx, matches)
	if err != nil {
		// The store constraint still prevents duplicates.
		logger.Warn("duplicate lookup failed, relying on store constraint", "error", err)
		fresh = matches
	}
	summary.Duplicates = len(matches) - len(fresh)

	for _, m := range fresh {
		rec, err := p.dispatcher.Dispatch(ctx, m)
		switch {
		case errors.Is(err, ErrAlreadyNotified):
			summary.Duplicates++
		case err != nil:
			summary.Failed++
			logger.Error("notification dispatch failed",
				"missing_person_id", m.Report.ID,
				"sighting_id", m.Sighting.ID,
				"error", err)
		default:
			summary.Notified++
			logger.Info("face match notification created",
				"notification_id", rec.ID,
				"missing_person_id", m.Report.ID,
				"sighting_id", m.Sighting.ID,
				"score", m.Score)
		}
	}

	logger.Info("cross-reference run finished",
		"candidates", summary.Candidates,
		"compared", summary.Compared,
		"matches", summary.Matches,
		"notified", summary.Notified,
		"duplicates", summary.Duplicates,
		"timed_out", summary.TimedOut)
	return summary, nil
}
