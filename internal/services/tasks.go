package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dormsync-backend-go/internal/models"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

const TaskTypeHoliday models.TaskType = "holiday"

type TaskFilter struct {
	Rooms  []string
	Status models.TaskStatus
	From   *time.Time
	Limit  int
}

type TaskStore interface {
	ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	FindTask(ctx context.Context, id string) (models.Task, error)
	CreateTask(ctx context.Context, task models.Task) error
	UpdateTask(ctx context.Context, task models.Task) error
	DeleteTask(ctx context.Context, id string) error
	CountTasks(ctx context.Context, filter TaskFilter) (int, error)
}

// TaskItem is a task listing row. Holidays from the calendar are listed as
// read-only items and never stored.
type TaskItem struct {
	models.Task
	IsHoliday bool `json:"isHoliday,omitempty"`
}

type TaskService struct {
	tasks    TaskStore
	accounts AccountStore
	calendar Calendar
	notifier Notifier
	audit    Auditor
	now      func() time.Time
}

type TaskOption func(*TaskService)

func WithTaskClock(clock func() time.Time) TaskOption {
	return func(s *TaskService) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithTaskNotifier(notifier Notifier) TaskOption {
	return func(s *TaskService) {
		s.notifier = notifier
	}
}

func NewTaskService(tasks TaskStore, accounts AccountStore, calendar Calendar, audit Auditor, opts ...TaskOption) *TaskService {
	if calendar == nil {
		calendar = NoopCalendar{}
	}
	s := &TaskService{tasks: tasks, accounts: accounts, calendar: calendar, audit: audit, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns tasks ordered by due date followed by this year's holidays.
func (s *TaskService) List(ctx context.Context) ([]TaskItem, error) {
	tasks, err := s.tasks.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return nil, WrapError(err, "list tasks")
	}
	items := make([]TaskItem, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, TaskItem{Task: task})
	}
	now := s.now().UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	holidays, err := s.calendar.ListHolidays(ctx, yearStart)
	if err != nil {
		externalFailures.WithLabelValues("calendar").Inc()
		log.Printf("calendar holidays unavailable: %v", err)
		return items, nil
	}
	for _, holiday := range holidays {
		due, err := time.Parse("2006-01-02", holiday.Date)
		if err != nil {
			continue
		}
		items = append(items, TaskItem{
			Task: models.Task{
				ID:           "holiday-" + holiday.Date,
				Title:        holiday.Title,
				Type:         TaskTypeHoliday,
				Area:         "Global",
				AssignedRoom: models.AllRooms,
				DueDate:      due,
				Status:       models.TaskPending,
			},
			IsHoliday: true,
		})
	}
	return items, nil
}

// Upcoming lists pending tasks for a room, including dormitory-wide ones.
func (s *TaskService) Upcoming(ctx context.Context, room string, limit int) ([]models.Task, error) {
	from := s.now().UTC()
	rooms := []string{models.AllRooms}
	if room != "" {
		rooms = append(rooms, room)
	}
	items, err := s.tasks.ListTasks(ctx, TaskFilter{Rooms: rooms, Status: models.TaskPending, From: &from, Limit: limit})
	if err != nil {
		return nil, WrapError(err, "list upcoming tasks")
	}
	return items, nil
}

func (s *TaskService) CountPending(ctx context.Context) (int, error) {
	n, err := s.tasks.CountTasks(ctx, TaskFilter{Status: models.TaskPending})
	if err != nil {
		return 0, WrapError(err, "count pending tasks")
	}
	return n, nil
}

type TaskInput struct {
	Title        *string
	Type         *models.TaskType
	Area         *string
	AssignedRoom *string
	DueDate      *time.Time
	Status       *models.TaskStatus
	Notes        *string
}

func (in TaskInput) Validate(creating bool) error {
	titleRules := []validation.Rule{validation.NilOrNotEmpty, validation.Length(1, 200)}
	typeRules := []validation.Rule{validation.NilOrNotEmpty, validation.In(
		models.TaskCleaning, models.TaskMaintenance, models.TaskInspection, models.TaskOther)}
	areaRules := []validation.Rule{validation.NilOrNotEmpty, validation.Length(1, 100)}
	roomRules := []validation.Rule{validation.NilOrNotEmpty, validation.Length(1, 32)}
	dueRules := []validation.Rule{}
	if creating {
		titleRules = append(titleRules, validation.Required)
		typeRules = append(typeRules, validation.Required)
		areaRules = append(areaRules, validation.Required)
		roomRules = append(roomRules, validation.Required)
		dueRules = append(dueRules, validation.Required)
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, titleRules...),
		validation.Field(&in.Type, typeRules...),
		validation.Field(&in.Area, areaRules...),
		validation.Field(&in.AssignedRoom, roomRules...),
		validation.Field(&in.DueDate, dueRules...),
		validation.Field(&in.Status, validation.NilOrNotEmpty, validation.In(models.TaskPending, models.TaskCompleted)),
		validation.Field(&in.Notes, validation.Length(0, 1000)),
	)
}

// Create stores the task, then mirrors it to the calendar. A calendar
// failure leaves the task without an event id.
func (s *TaskService) Create(ctx context.Context, actor Principal, in TaskInput, meta RequestMeta) (models.Task, error) {
	if err := validationError(in.Validate(true)); err != nil {
		return models.Task{}, err
	}
	now := s.now().UTC()
	task := models.Task{
		ID:        uuid.NewString(),
		Status:    models.TaskPending,
		CreatedBy: optionalString(actor.ID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyTaskInput(&task, in)
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return models.Task{}, WrapError(err, "create task")
	}

	recipients, attendees := s.roomAudience(ctx, task.AssignedRoom)
	eventID, err := s.calendar.CreateEvent(ctx, task, attendees)
	switch {
	case err != nil:
		externalFailures.WithLabelValues("calendar").Inc()
		log.Printf("calendar event for task %s failed: %v", task.ID, err)
	case eventID != "":
		task.GoogleEventID = &eventID
		if err := s.tasks.UpdateTask(ctx, task); err != nil {
			log.Printf("storing calendar event id for task %s failed: %v", task.ID, err)
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, recipients,
			fmt.Sprintf("New %s task: %s (due %s)", task.Type, task.Title, task.DueDate.Format("2006-01-02")),
			models.NotificationInfo, Related{ID: task.ID, Model: models.ModelTask})
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionCreateTask,
		Description: fmt.Sprintf("Created %s task %q for room %s", task.Type, task.Title, task.AssignedRoom),
		Meta:        meta,
	})
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, actor Principal, id string, in TaskInput, meta RequestMeta) (models.Task, error) {
	if err := validationError(in.Validate(false)); err != nil {
		return models.Task{}, err
	}
	task, err := s.find(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	applyTaskInput(&task, in)
	task.UpdatedAt = s.now().UTC()
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return models.Task{}, WrapError(err, "update task")
	}
	if task.GoogleEventID != nil {
		if err := s.calendar.UpdateEvent(ctx, *task.GoogleEventID, task); err != nil {
			externalFailures.WithLabelValues("calendar").Inc()
			log.Printf("calendar update for task %s failed: %v", task.ID, err)
		}
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionUpdateTask,
		Description: fmt.Sprintf("Updated task %q (%s)", task.Title, task.Status),
		Meta:        meta,
	})
	return task, nil
}

// Delete removes the linked calendar event first. The local task is deleted
// even when the calendar call fails.
func (s *TaskService) Delete(ctx context.Context, actor Principal, id string, meta RequestMeta) error {
	task, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if task.GoogleEventID != nil {
		if err := s.calendar.DeleteEvent(ctx, *task.GoogleEventID); err != nil {
			externalFailures.WithLabelValues("calendar").Inc()
			log.Printf("calendar delete for task %s failed: %v", task.ID, err)
		}
	}
	if err := s.tasks.DeleteTask(ctx, task.ID); err != nil {
		return WrapError(err, "delete task")
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionDeleteTask,
		Description: fmt.Sprintf("Deleted task %q", task.Title),
		Meta:        meta,
	})
	return nil
}

// roomAudience returns the ids and emails of the students living in room.
func (s *TaskService) roomAudience(ctx context.Context, room string) ([]string, []string) {
	students, err := s.accounts.ListStudentsInRoom(ctx, room)
	if err != nil {
		log.Printf("task audience for room %s: %v", room, err)
		return nil, nil
	}
	ids := make([]string, 0, len(students))
	emails := make([]string, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
		emails = append(emails, student.Email)
	}
	return ids, emails
}

func (s *TaskService) find(ctx context.Context, id string) (models.Task, error) {
	if !validID(id) {
		return models.Task{}, ErrNotFound("Task not found")
	}
	task, err := s.tasks.FindTask(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrNotFound("Task not found")
	}
	if err != nil {
		return models.Task{}, WrapError(err, "find task")
	}
	return task, nil
}

func applyTaskInput(task *models.Task, in TaskInput) {
	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
	}
	if in.Type != nil {
		task.Type = *in.Type
	}
	if in.Area != nil {
		task.Area = strings.TrimSpace(*in.Area)
	}
	if in.AssignedRoom != nil {
		task.AssignedRoom = strings.TrimSpace(*in.AssignedRoom)
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate.UTC()
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	if in.Notes != nil {
		task.Notes = trimmedPtr(in.Notes)
	}
}
