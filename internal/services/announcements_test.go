package services

import (
	"context"
	"testing"

	"dormsync-backend-go/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncementBroadcastsToStudents(t *testing.T) {
	store := newMemStore()
	notifier := &fakeNotifier{}
	svc := NewAnnouncementService(store, store, notifier, &recordingAuditor{})
	ctx := context.Background()
	a := store.put(models.Account{ID: uuid.NewString(), Email: "a@example.com", Role: models.RoleStudent})
	b := store.put(models.Account{ID: uuid.NewString(), Email: "b@example.com", Role: models.RoleStudent})
	store.put(models.Account{ID: uuid.NewString(), Email: "m@example.com", Role: models.RoleManager})

	item, err := svc.Create(ctx, adminPrincipal, AnnouncementInput{Title: " Fire drill ", Content: "Friday 10am", Priority: models.PriorityUrgent}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, "Fire drill", item.Title)

	require.Len(t, notifier.notices, 1)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, notifier.notices[0].Recipients)
	assert.Equal(t, models.NotificationWarning, notifier.notices[0].Kind)
	assert.Equal(t, "New announcement: Fire drill", notifier.notices[0].Message)

	plain, err := svc.Create(ctx, adminPrincipal, AnnouncementInput{Title: "Menu", Content: "Pasta"}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityNormal, plain.Priority)
	assert.Equal(t, models.NotificationInfo, notifier.notices[1].Kind)

	_, err = svc.Create(ctx, adminPrincipal, AnnouncementInput{Title: "x", Content: "y", Priority: "loud"}, testMeta)
	assert.True(t, HasCode(err, CodeValidation))

	require.NoError(t, svc.Delete(ctx, adminPrincipal, item.ID, testMeta))
	assert.True(t, HasCode(svc.Delete(ctx, adminPrincipal, item.ID, testMeta), CodeNotFound))
	items, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
