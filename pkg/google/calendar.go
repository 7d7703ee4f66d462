package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")

	errStopPaging = errors.New("stop paging")
)

// Window bounds listing requests relative to the time of the call.
type Window struct {
	Lookback  time.Duration
	Lookahead time.Duration
}

// Provider reads and writes schedules on Google Calendar.
type Provider struct {
	logger zerolog.Logger
	srv    *calendar.Service
	window Window
	now    func() time.Time
}

func NewProvider(logger zerolog.Logger, srv *calendar.Service, window Window) *Provider {
	return &Provider{
		logger: logger.With().Str("component", "google").Logger(),
		srv:    srv,
		window: window,
		now:    time.Now,
	}
}

// ListSchedules lists the single (expanded) events of calendarID within
// the configured window, following every page.
func (p *Provider) ListSchedules(ctx context.Context, calendarID string) ([]model.ScheduleRef, error) {
	now := p.now()
	call := p.srv.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(false)
	if p.window.Lookback > 0 {
		call = call.TimeMin(now.Add(-p.window.Lookback).Format(time.RFC3339))
	}
	if p.window.Lookahead > 0 {
		call = call.TimeMax(now.Add(p.window.Lookahead).Format(time.RFC3339))
	}

	var refs []model.ScheduleRef
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item.Id == "" || item.Status == "cancelled" {
				continue
			}
			refs = append(refs, model.ScheduleRef{ID: item.Id, CalendarID: calendarID})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar %s: %w", calendarID, err)
	}
	p.logger.Debug().Str("calendar_id", calendarID).Int("events", len(refs)).Msg("listed events")
	return refs, nil
}

// GetSchedule fetches one event in full. A missing event yields
// ErrScheduleNotFound.
func (p *Provider) GetSchedule(ctx context.Context, calendarID, scheduleID string) (model.ExternalSchedule, error) {
	event, err := p.srv.Events.Get(calendarID, scheduleID).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			return model.ExternalSchedule{}, ErrScheduleNotFound
		}
		return model.ExternalSchedule{}, fmt.Errorf("unable to retrieve event %s: %w", scheduleID, err)
	}
	return EventToSchedule(calendarID, event)
}

// CreateSchedule inserts an event for a manual task and returns its id.
func (p *Provider) CreateSchedule(ctx context.Context, calendarID string, draft model.ScheduleDraft) (string, error) {
	event, err := DraftToEvent(draft)
	if err != nil {
		return "", err
	}
	created, err := p.srv.Events.Insert(calendarID, event).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("unable to create event on %s: %w", calendarID, err)
	}
	p.logger.Info().Str("calendar_id", calendarID).Str("event_id", created.Id).Msg("created event")
	return created.Id, nil
}
