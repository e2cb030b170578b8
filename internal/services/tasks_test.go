package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"dormsync-backend-go/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskHarness struct {
	svc      *TaskService
	store    *memStore
	calendar *fakeCalendar
	notifier *fakeNotifier
	audit    *recordingAuditor
}

func newTaskHarness(t *testing.T) *taskHarness {
	t.Helper()
	h := &taskHarness{store: newMemStore(), calendar: &fakeCalendar{eventID: "evt-1"}, notifier: &fakeNotifier{}, audit: &recordingAuditor{}}
	h.svc = NewTaskService(h.store, h.store, h.calendar, h.audit, WithTaskClock(fixedClock), WithTaskNotifier(h.notifier))
	return h
}

func (h *taskHarness) resident(email, room string) models.Account {
	return h.store.put(models.Account{
		ID:             uuid.NewString(),
		Email:          email,
		Role:           models.RoleStudent,
		Status:         models.StatusActive,
		StudentProfile: &models.StudentProfile{RoomNumber: room, Status: models.ProfileActive},
	})
}

func cleaningTask(room string, due time.Time) TaskInput {
	kind := models.TaskCleaning
	return TaskInput{
		Title:        strPtr("Kitchen clean"),
		Type:         &kind,
		Area:         strPtr("Kitchen"),
		AssignedRoom: strPtr(room),
		DueDate:      &due,
	}
}

func TestCreateTaskSyncsCalendarAndNotifiesRoom(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()
	inRoom := h.resident("r1@example.com", "101")
	h.resident("r2@example.com", "102")

	task, err := h.svc.Create(ctx, adminPrincipal, cleaningTask("101", fixedNow.Add(48*time.Hour)), testMeta)
	require.NoError(t, err)
	require.NotNil(t, task.GoogleEventID)
	assert.Equal(t, "evt-1", *task.GoogleEventID)
	assert.Equal(t, models.TaskPending, task.Status)

	stored, err := h.store.FindTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", *stored.GoogleEventID)

	require.Len(t, h.calendar.attendees, 1)
	assert.Equal(t, []string{"r1@example.com"}, h.calendar.attendees[0])
	require.Len(t, h.notifier.notices, 1)
	assert.Equal(t, []string{inRoom.ID}, h.notifier.notices[0].Recipients)
}

func TestCreateTaskForWholeDorm(t *testing.T) {
	h := newTaskHarness(t)
	h.resident("a@example.com", "101")
	h.resident("b@example.com", "102")

	_, err := h.svc.Create(context.Background(), adminPrincipal, cleaningTask(models.AllRooms, fixedNow.Add(time.Hour)), testMeta)
	require.NoError(t, err)
	assert.Len(t, h.notifier.notices[0].Recipients, 2)
}

func TestCreateTaskSurvivesCalendarFailure(t *testing.T) {
	h := newTaskHarness(t)
	h.calendar.createErr = errors.New("quota exceeded")

	task, err := h.svc.Create(context.Background(), adminPrincipal, cleaningTask("101", fixedNow.Add(time.Hour)), testMeta)
	require.NoError(t, err)
	assert.Nil(t, task.GoogleEventID)
	assert.Equal(t, []string{ActionCreateTask}, h.audit.actions())
}

func TestCreateTaskValidation(t *testing.T) {
	h := newTaskHarness(t)
	input := cleaningTask("101", fixedNow)
	input.Title = nil
	_, err := h.svc.Create(context.Background(), adminPrincipal, input, testMeta)
	assert.True(t, HasCode(err, CodeValidation))

	bogus := models.TaskType("party")
	input = cleaningTask("101", fixedNow)
	input.Type = &bogus
	_, err = h.svc.Create(context.Background(), adminPrincipal, input, testMeta)
	assert.True(t, HasCode(err, CodeValidation))
}

func TestUpdateAndDeleteTask(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()
	task, err := h.svc.Create(ctx, adminPrincipal, cleaningTask("101", fixedNow.Add(time.Hour)), testMeta)
	require.NoError(t, err)

	done := models.TaskCompleted
	updated, err := h.svc.Update(ctx, adminPrincipal, task.ID, TaskInput{Status: &done}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, updated.Status)
	assert.Equal(t, "Kitchen clean", updated.Title)
	assert.Equal(t, []string{"evt-1"}, h.calendar.updated)

	h.calendar.deleteErr = errors.New("gone")
	require.NoError(t, h.svc.Delete(ctx, adminPrincipal, task.ID, testMeta))
	assert.Equal(t, []string{"evt-1"}, h.calendar.deleted)
	_, err = h.store.FindTask(ctx, task.ID)
	assert.Error(t, err)

	assert.True(t, HasCode(h.svc.Delete(ctx, adminPrincipal, task.ID, testMeta), CodeNotFound))
}

func TestListMergesHolidays(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()
	h.calendar.holidays = []Holiday{{Title: "Spring Break", Date: "2024-03-25"}, {Title: "broken", Date: "soon"}}
	_, err := h.svc.Create(ctx, adminPrincipal, cleaningTask("101", fixedNow.Add(time.Hour)), testMeta)
	require.NoError(t, err)

	items, err := h.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.False(t, items[0].IsHoliday)
	assert.True(t, items[1].IsHoliday)
	assert.Equal(t, "holiday-2024-03-25", items[1].ID)
	assert.Equal(t, TaskTypeHoliday, items[1].Type)

	h.calendar.holidayErr = errors.New("calendar down")
	items, err = h.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestUpcomingIncludesDormWideTasks(t *testing.T) {
	h := newTaskHarness(t)
	ctx := context.Background()
	_, err := h.svc.Create(ctx, adminPrincipal, cleaningTask("101", fixedNow.Add(time.Hour)), testMeta)
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, adminPrincipal, cleaningTask(models.AllRooms, fixedNow.Add(2*time.Hour)), testMeta)
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, adminPrincipal, cleaningTask("202", fixedNow.Add(time.Hour)), testMeta)
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, adminPrincipal, cleaningTask("101", fixedNow.Add(-time.Hour)), testMeta)
	require.NoError(t, err)

	items, err := h.svc.Upcoming(ctx, "101", 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "101", items[0].AssignedRoom)
	assert.Equal(t, models.AllRooms, items[1].AssignedRoom)

	pending, err := h.svc.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, pending)
}
