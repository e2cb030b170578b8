package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dormsync-backend-go/internal/models"

	"github.com/redis/go-redis/v9"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	calendarEventDuration = time.Hour
	holidayCacheTTL       = 6 * time.Hour
)

type Holiday struct {
	Title string `json:"title"`
	Date  string `json:"date"`
}

// Calendar mirrors tasks to an external calendar.
type Calendar interface {
	CreateEvent(ctx context.Context, task models.Task, attendees []string) (string, error)
	UpdateEvent(ctx context.Context, eventID string, task models.Task) error
	DeleteEvent(ctx context.Context, eventID string) error
	ListHolidays(ctx context.Context, from time.Time) ([]Holiday, error)
}

// NoopCalendar is used when no calendar credentials are configured.
type NoopCalendar struct{}

func (NoopCalendar) CreateEvent(context.Context, models.Task, []string) (string, error) {
	return "", nil
}

func (NoopCalendar) UpdateEvent(context.Context, string, models.Task) error { return nil }

func (NoopCalendar) DeleteEvent(context.Context, string) error { return nil }

func (NoopCalendar) ListHolidays(context.Context, time.Time) ([]Holiday, error) { return nil, nil }

type GoogleCalendar struct {
	events            *calendar.EventsService
	calendarID        string
	holidayCalendarID string
}

func NewGoogleCalendar(ctx context.Context, credentialsFile, calendarID, holidayCalendarID string) (*GoogleCalendar, error) {
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(calendar.CalendarScope),
	)
	if err != nil {
		return nil, WrapError(err, "calendar client")
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendar{
		events:            svc.Events,
		calendarID:        calendarID,
		holidayCalendarID: holidayCalendarID,
	}, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, task models.Task, attendees []string) (string, error) {
	event := buildCalendarEvent(task)
	for _, email := range attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}
	created, err := g.events.Insert(g.calendarID, event).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func (g *GoogleCalendar) UpdateEvent(ctx context.Context, eventID string, task models.Task) error {
	_, err := g.events.Patch(g.calendarID, eventID, buildCalendarEvent(task)).Context(ctx).Do()
	return err
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	return g.events.Delete(g.calendarID, eventID).SendUpdates("all").Context(ctx).Do()
}

func (g *GoogleCalendar) ListHolidays(ctx context.Context, from time.Time) ([]Holiday, error) {
	if g.holidayCalendarID == "" {
		return nil, nil
	}
	result, err := g.events.List(g.holidayCalendarID).
		TimeMin(from.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	holidays := make([]Holiday, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Start == nil {
			continue
		}
		date := item.Start.Date
		if date == "" && len(item.Start.DateTime) >= 10 {
			date = item.Start.DateTime[:10]
		}
		if date == "" {
			continue
		}
		holidays = append(holidays, Holiday{Title: item.Summary, Date: date})
	}
	return holidays, nil
}

func buildCalendarEvent(task models.Task) *calendar.Event {
	start := task.DueDate.UTC()
	end := start.Add(calendarEventDuration)
	description := fmt.Sprintf("Type: %s\nArea: %s\nRoom: %s", task.Type, task.Area, task.AssignedRoom)
	if task.Notes != nil && strings.TrimSpace(*task.Notes) != "" {
		description += "\nNotes: " + *task.Notes
	}
	return &calendar.Event{
		Summary:     fmt.Sprintf("[%s] %s", strings.ToUpper(string(task.Type)), task.Title),
		Location:    task.Area,
		Description: description,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: "UTC"},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 10},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

// CachedCalendar keeps holiday listings in Redis so task listings do not hit
// the calendar API on every request.
type CachedCalendar struct {
	Calendar
	client *redis.Client
	ttl    time.Duration
}

func NewCachedCalendar(inner Calendar, client *redis.Client) *CachedCalendar {
	return &CachedCalendar{Calendar: inner, client: client, ttl: holidayCacheTTL}
}

func (c *CachedCalendar) ListHolidays(ctx context.Context, from time.Time) ([]Holiday, error) {
	key := "dormsync:holidays:" + from.Format("2006-01-02")
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []Holiday
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Printf("holiday cache read: %v", err)
	}
	holidays, err := c.Calendar.ListHolidays(ctx, from)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(holidays); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Printf("holiday cache write: %v", err)
		}
	}
	return holidays, nil
}
