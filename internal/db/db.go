package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dormsync-backend-go/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

const uniqueViolation = "23505"

func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store implements every persistence interface the services declare.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

// mapError turns unique violations into models.ErrDuplicateKey.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", models.ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

// where collects AND-ed conditions with positional arguments. Each "?" in
// a condition is replaced by the next $n placeholder.
type where struct {
	parts []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.parts = append(w.parts, cond)
}

func (w *where) String() string {
	if len(w.parts) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.parts, " AND ")
}

// next returns the placeholder for an argument appended after the conditions.
func (w *where) next(arg interface{}) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}
