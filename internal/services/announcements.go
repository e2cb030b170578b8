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

type AnnouncementStore interface {
	ListAnnouncements(ctx context.Context, limit int) ([]models.Announcement, error)
	FindAnnouncement(ctx context.Context, id string) (models.Announcement, error)
	CreateAnnouncement(ctx context.Context, item models.Announcement) error
	DeleteAnnouncement(ctx context.Context, id string) error
}

type AnnouncementService struct {
	store    AnnouncementStore
	accounts AccountStore
	notifier Notifier
	audit    Auditor
	now      func() time.Time
}

func NewAnnouncementService(store AnnouncementStore, accounts AccountStore, notifier Notifier, audit Auditor) *AnnouncementService {
	return &AnnouncementService{store: store, accounts: accounts, notifier: notifier, audit: audit, now: time.Now}
}

// List returns announcements newest first. limit <= 0 means all.
func (s *AnnouncementService) List(ctx context.Context, limit int) ([]models.Announcement, error) {
	items, err := s.store.ListAnnouncements(ctx, limit)
	if err != nil {
		return nil, WrapError(err, "list announcements")
	}
	return items, nil
}

type AnnouncementInput struct {
	Title    string
	Content  string
	Priority models.AnnouncementPriority
}

func (in AnnouncementInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Content, validation.Required, validation.Length(1, 5000)),
		validation.Field(&in.Priority, validation.In(models.PriorityNormal, models.PriorityImportant, models.PriorityUrgent)),
	)
}

func (s *AnnouncementService) Create(ctx context.Context, actor Principal, in AnnouncementInput, meta RequestMeta) (models.Announcement, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := validationError(in.Validate()); err != nil {
		return models.Announcement{}, err
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	item := models.Announcement{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Content:   in.Content,
		Priority:  in.Priority,
		AuthorID:  optionalString(actor.ID),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateAnnouncement(ctx, item); err != nil {
		return models.Announcement{}, WrapError(err, "create announcement")
	}

	students, err := s.accounts.ListAccounts(ctx, AccountFilter{Role: models.RoleStudent})
	if err != nil {
		log.Printf("announcement %s: listing recipients failed: %v", item.ID, err)
	} else {
		recipients := make([]string, 0, len(students))
		for _, student := range students {
			recipients = append(recipients, student.ID)
		}
		kind := models.NotificationInfo
		if item.Priority == models.PriorityUrgent {
			kind = models.NotificationWarning
		}
		s.notifier.Notify(ctx, recipients, "New announcement: "+item.Title, kind,
			Related{ID: item.ID, Model: models.ModelAnnouncement})
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionCreateAnnouncement,
		Description: fmt.Sprintf("Posted %s announcement %q", item.Priority, item.Title),
		Meta:        meta,
	})
	return item, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, actor Principal, id string, meta RequestMeta) error {
	if !validID(id) {
		return ErrNotFound("Announcement not found")
	}
	item, err := s.store.FindAnnouncement(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound("Announcement not found")
	}
	if err != nil {
		return WrapError(err, "find announcement")
	}
	if err := s.store.DeleteAnnouncement(ctx, item.ID); err != nil {
		return WrapError(err, "delete announcement")
	}
	s.audit.Record(ctx, AuditEntry{
		ActorID:     actor.ID,
		Action:      ActionDeleteAnnouncement,
		Description: fmt.Sprintf("Deleted announcement %q", item.Title),
		Meta:        meta,
	})
	return nil
}
