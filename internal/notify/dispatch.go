package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/kozaktomas/lookout/internal/config"
	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/metrics"
)

// Dispatcher persists notifications and pushes them to a MessageChannel.
// Pushes run in the background so a slow channel never delays the caller.
type Dispatcher struct {
	store     database.NotificationStore
	channel   MessageChannel
	templates config.TemplatesConfig
	logger    *slog.Logger
	recorder  Recorder
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher. channel, logger and recorder may be nil.
func NewDispatcher(store database.NotificationStore, channel MessageChannel, templates config.TemplatesConfig, logger *slog.Logger, recorder Recorder) *Dispatcher {
	if channel == nil {
		channel = NoopChannel{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Dispatcher{
		store:     store,
		channel:   channel,
		templates: templates,
		logger:    logger,
		recorder:  recorder,
	}
}

// Dispatch stores a face_match notification for m addressed to the report owner.
// It returns ErrAlreadyNotified when the pair was notified before.
func (d *Dispatcher) Dispatch(ctx context.Context, m Match) (*database.NotificationRecord, error) {
	title, message := render(d.templates.FaceMatch, m.Report.Name, percent(m.Score), m.Sighting.Location)
	rec := &database.NotificationRecord{
		RecipientID:     m.Report.OwnerID,
		RecipientPhone:  m.Report.ContactPhone,
		RecipientEmail:  m.Report.ContactEmail,
		Title:           title,
		Message:         message,
		Type:            constants.NotificationTypeFaceMatch,
		MissingPersonID: m.Report.ID,
		SightingID:      m.Sighting.ID,
	}

	if err := d.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, database.ErrDuplicateNotification) {
			d.recorder.RecordNotification(metrics.ResultDuplicate)
			return nil, ErrAlreadyNotified
		}
		d.recorder.RecordNotification(metrics.ResultFailed)
		return nil, fmt.Errorf("store face match notification: %w", err)
	}
	d.recorder.RecordNotification(metrics.ResultCreated)

	d.push(ctx, rec)
	return rec, nil
}

// DispatchSighting notifies the report owner that a sighting was filed against the report.
func (d *Dispatcher) DispatchSighting(ctx context.Context, report *database.MissingPerson, sighting *database.Sighting) (*database.NotificationRecord, error) {
	title, message := render(d.templates.Sighting, report.Name, 0, sighting.Location)
	rec := &database.NotificationRecord{
		RecipientID:     report.OwnerID,
		RecipientPhone:  report.ContactPhone,
		RecipientEmail:  report.ContactEmail,
		Title:           title,
		Message:         message,
		Type:            constants.NotificationTypeSighting,
		MissingPersonID: report.ID,
		SightingID:      sighting.ID,
	}
	if err := d.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("store sighting notification: %w", err)
	}

	d.push(ctx, rec)
	return rec, nil
}

// Wait blocks until all background pushes have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) push(ctx context.Context, rec *database.NotificationRecord) {
	msg := Message{
		RecipientID: rec.RecipientID,
		Phone:       rec.RecipientPhone,
		Email:       rec.RecipientEmail,
		Title:       rec.Title,
		Body:        rec.Message,
	}
	logger := d.logger.With("notification_id", rec.ID, "type", rec.Type)

	// The push outlives the request that triggered it.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ChannelMaxElapsedRetry+constants.DefaultChannelTimeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()

		err := d.channel.Send(sendCtx, msg)
		d.recorder.RecordChannelSend(err)
		if err != nil {
			logger.Warn("notification push failed", "error", err)
			return
		}
		logger.Debug("notification pushed")
	}()
}

// percent converts a similarity score to a rounded percentage.
func percent(score float64) int {
	return int(math.Round(score * 100))
}

// render fills a template. The location suffix is appended only when location is known.
func render(tpl config.MessageTemplate, name string, pct int, location string) (title, message string) {
	location = strings.TrimSpace(location)
	r := strings.NewReplacer(
		"{name}", strings.TrimSpace(name),
		"{percent}", strconv.Itoa(pct),
		"{location}", location,
	)

	message = r.Replace(tpl.Message)
	if location != "" && tpl.Location != "" {
		message += r.Replace(tpl.Location)
	}
	return r.Replace(tpl.Title), message
}
