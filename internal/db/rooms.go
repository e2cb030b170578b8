package db

import (
	"context"

	"dormsync-backend-go/internal/models"
)

const roomColumns = `id, room_number, floor, capacity, type, status, created_at, updated_at`

func (s *Store) ListRooms(ctx context.Context) ([]models.Room, error) {
	items := []models.Room{}
	err := s.db.SelectContext(ctx, &items, `SELECT `+roomColumns+` FROM rooms ORDER BY floor, room_number`)
	return items, err
}

func (s *Store) FindRoom(ctx context.Context, id string) (models.Room, error) {
	var room models.Room
	err := s.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	return room, err
}

func (s *Store) CreateRoom(ctx context.Context, room models.Room) error {
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO rooms (`+roomColumns+`)
VALUES (:id, :room_number, :floor, :capacity, :type, :status, :created_at, :updated_at)`, room)
	return mapError(err)
}

func (s *Store) UpdateRoom(ctx context.Context, room models.Room) error {
	res, err := s.db.NamedExecContext(ctx, `
UPDATE rooms SET
  room_number = :room_number,
  floor = :floor,
  capacity = :capacity,
  type = :type,
  status = :status,
  updated_at = :updated_at
WHERE id = :id`, room)
	if err != nil {
		return mapError(err)
	}
	return expectRow(res)
}

func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}
