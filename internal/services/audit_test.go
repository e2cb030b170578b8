package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRecorderPersistsInBackground(t *testing.T) {
	store := newMemStore()
	recorder := NewAuditRecorder(store, WithAuditClock(fixedClock), WithAuditQueueSize(8))
	ctx := context.Background()

	recorder.Record(ctx, AuditEntry{ActorID: "u1", Action: ActionLogin, Description: "User logged in", Meta: testMeta})
	recorder.Record(ctx, AuditEntry{Action: ActionRegister, Description: "anonymous"})

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, recorder.Close(closeCtx))

	require.Len(t, store.auditLogs, 2)
	first := store.auditLogs[0]
	require.NotNil(t, first.ActorID)
	assert.Equal(t, "u1", *first.ActorID)
	require.NotNil(t, first.IPAddress)
	assert.Equal(t, "10.0.0.1", *first.IPAddress)
	assert.Equal(t, fixedNow, first.CreatedAt)
	assert.Nil(t, store.auditLogs[1].ActorID)
	assert.Nil(t, store.auditLogs[1].UserAgent)

	recorder.Record(ctx, AuditEntry{Action: ActionLogin})
	assert.Len(t, store.auditLogs, 2)
	require.NoError(t, recorder.Close(closeCtx))
}

func TestAuditListFiltersAndPages(t *testing.T) {
	store := newMemStore()
	recorder := NewAuditRecorder(store)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		recorder.Record(ctx, AuditEntry{ActorID: "admin", Action: ActionCreatePayment})
	}
	recorder.Record(ctx, AuditEntry{ActorID: "other", Action: ActionLogin})
	require.NoError(t, recorder.Close(ctx))

	items, total, err := recorder.List(ctx, AuditFilter{Action: ActionCreatePayment, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, items, 5)

	items, total, err = recorder.List(ctx, AuditFilter{ActorID: "other"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}

func TestNormalizePage(t *testing.T) {
	page, size := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = NormalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, size)
}
