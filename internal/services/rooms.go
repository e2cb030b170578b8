package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dormsync-backend-go/internal/models"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

type RoomStore interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	FindRoom(ctx context.Context, id string) (models.Room, error)
	CreateRoom(ctx context.Context, room models.Room) error
	UpdateRoom(ctx context.Context, room models.Room) error
	DeleteRoom(ctx context.Context, id string) error
}

type RoomService struct {
	rooms    RoomStore
	accounts AccountStore
	audit    Auditor
	now      func() time.Time
}

func NewRoomService(rooms RoomStore, accounts AccountStore, audit Auditor) *RoomService {
	return &RoomService{rooms: rooms, accounts: accounts, audit: audit, now: time.Now}
}

type RoomDetail struct {
	Room      models.Room
	Occupants []models.Account
}

type RoomInput struct {
	RoomNumber *string
	Floor      *int
	Capacity   *int
	Type       *string
	Status     *models.RoomStatus
}

func (in RoomInput) Validate(creating bool) error {
	numberRules := []validation.Rule{validation.NilOrNotEmpty, validation.Length(1, 32)}
	capacityRules := []validation.Rule{validation.Min(1)}
	if creating {
		numberRules = append(numberRules, validation.Required)
		capacityRules = append(capacityRules, validation.Required)
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.RoomNumber, numberRules...),
		validation.Field(&in.Floor, validation.Min(0)),
		validation.Field(&in.Capacity, capacityRules...),
		validation.Field(&in.Type, validation.Length(0, 32)),
		validation.Field(&in.Status, validation.In(models.RoomAvailable, models.RoomOccupied, models.RoomMaintenance)),
	)
}

func (s *RoomService) List(ctx context.Context) ([]models.Room, error) {
	items, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, WrapError(err, "list rooms")
	}
	return items, nil
}

func (s *RoomService) Get(ctx context.Context, id string) (RoomDetail, error) {
	room, err := s.find(ctx, id)
	if err != nil {
		return RoomDetail{}, err
	}
	occupants, err := s.accounts.ListStudentsInRoom(ctx, room.RoomNumber)
	if err != nil {
		return RoomDetail{}, WrapError(err, "list occupants")
	}
	return RoomDetail{Room: room, Occupants: occupants}, nil
}

func (s *RoomService) Create(ctx context.Context, actor Principal, in RoomInput, meta RequestMeta) (models.Room, error) {
	if err := validationError(in.Validate(true)); err != nil {
		return models.Room{}, err
	}
	now := s.now().UTC()
	room := models.Room{
		ID:         uuid.NewString(),
		RoomNumber: strings.TrimSpace(*in.RoomNumber),
		Capacity:   *in.Capacity,
		Type:       "shared",
		Status:     models.RoomAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyRoomInput(&room, in)
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return models.Room{}, ErrConflict(fmt.Sprintf("Room %s already exists", room.RoomNumber))
		}
		return models.Room{}, WrapError(err, "create room")
	}
	s.audit.Record(ctx, AuditEntry{ActorID: actor.ID, Action: ActionCreateRoom, Description: "Created room " + room.RoomNumber, Meta: meta})
	return room, nil
}

func (s *RoomService) Update(ctx context.Context, actor Principal, id string, in RoomInput, meta RequestMeta) (models.Room, error) {
	if err := validationError(in.Validate(false)); err != nil {
		return models.Room{}, err
	}
	room, err := s.find(ctx, id)
	if err != nil {
		return models.Room{}, err
	}
	applyRoomInput(&room, in)
	room.UpdatedAt = s.now().UTC()
	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return models.Room{}, ErrConflict(fmt.Sprintf("Room %s already exists", room.RoomNumber))
		}
		return models.Room{}, WrapError(err, "update room")
	}
	s.audit.Record(ctx, AuditEntry{ActorID: actor.ID, Action: ActionUpdateRoom, Description: "Updated room " + room.RoomNumber, Meta: meta})
	return room, nil
}

func (s *RoomService) Delete(ctx context.Context, actor Principal, id string, meta RequestMeta) error {
	room, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.rooms.DeleteRoom(ctx, room.ID); err != nil {
		return WrapError(err, "delete room")
	}
	s.audit.Record(ctx, AuditEntry{ActorID: actor.ID, Action: ActionDeleteRoom, Description: "Deleted room " + room.RoomNumber, Meta: meta})
	return nil
}

func (s *RoomService) find(ctx context.Context, id string) (models.Room, error) {
	if !validID(id) {
		return models.Room{}, ErrNotFound("Room not found")
	}
	room, err := s.rooms.FindRoom(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrNotFound("Room not found")
	}
	if err != nil {
		return models.Room{}, WrapError(err, "find room")
	}
	return room, nil
}

func applyRoomInput(room *models.Room, in RoomInput) {
	if in.RoomNumber != nil {
		room.RoomNumber = strings.TrimSpace(*in.RoomNumber)
	}
	if in.Floor != nil {
		room.Floor = *in.Floor
	}
	if in.Capacity != nil {
		room.Capacity = *in.Capacity
	}
	if in.Type != nil && strings.TrimSpace(*in.Type) != "" {
		room.Type = strings.TrimSpace(*in.Type)
	}
	if in.Status != nil {
		room.Status = *in.Status
	}
}
