package cellar

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wine-cellar/internal/database"
)

// Repository is a SQLite-backed bottle catalogue. It also serves as a Source.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a new Repository.
func NewRepository(d database.DBTX) *Repository {
	return &Repository{db: d}
}

// Save inserts or replaces a bottle. A missing id is generated.
func (r *Repository) Save(ctx context.Context, b Bottle) (Bottle, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Quantity < 0 {
		return Bottle{}, fmt.Errorf("bottle %s: quantity must not be negative", b.ID)
	}

	wineJSON, err := json.Marshal(b.Wine)
	if err != nil {
		return Bottle{}, fmt.Errorf("failed to marshal wine: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bottles (id, user_id, quantity, wine, readiness_label, drink_from, drink_until, analyzed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity = excluded.quantity,
			wine = excluded.wine,
			readiness_label = excluded.readiness_label,
			drink_from = excluded.drink_from,
			drink_until = excluded.drink_until,
			analyzed_at = excluded.analyzed_at`,
		b.ID, b.UserID, b.Quantity, string(wineJSON),
		nullLabel(b.Readiness), nullInt(b.DrinkFrom), nullInt(b.DrinkUntil), nullTime(b.AnalyzedAt),
		b.CreatedAt.UTC(),
	)
	if err != nil {
		return Bottle{}, fmt.Errorf("failed to save bottle %s: %w", b.ID, err)
	}
	return b, nil
}

// Get retrieves a bottle by id.
func (r *Repository) Get(ctx context.Context, id string) (*Bottle, error) {
	row := r.db.QueryRowContext(ctx, selectBottle+` WHERE id = ?`, id)
	b, err := scanBottle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrBottleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get bottle %s: %w", id, err)
	}
	return &b, nil
}

// ListBottles returns every bottle of a user, including out-of-stock ones.
func (r *Repository) ListBottles(ctx context.Context, userID string) ([]Bottle, error) {
	rows, err := r.db.QueryContext(ctx, selectBottle+` WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bottles for user %s: %w", userID, err)
	}
	defer rows.Close()

	var bottles []Bottle
	for rows.Next() {
		b, err := scanBottle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bottle: %w", err)
		}
		bottles = append(bottles, b)
	}
	return bottles, rows.Err()
}

// UpdateQuantity sets the remaining quantity of a bottle.
func (r *Repository) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("bottle %s: quantity must not be negative", id)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE bottles SET quantity = ? WHERE id = ?`, quantity, id)
	if err != nil {
		return fmt.Errorf("failed to update quantity for %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

// UpdateReadiness stores the outcome of a readiness analysis.
func (r *Repository) UpdateReadiness(ctx context.Context, id string, label ReadinessLabel, drinkFrom, drinkUntil *int, analyzedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bottles SET readiness_label = ?, drink_from = ?, drink_until = ?, analyzed_at = ?
		WHERE id = ?`,
		string(label), nullInt(drinkFrom), nullInt(drinkUntil), analyzedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update readiness for %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

const selectBottle = `SELECT id, user_id, quantity, wine, readiness_label, drink_from, drink_until, analyzed_at, created_at FROM bottles`

type scanner interface {
	Scan(dest ...any) error
}

func scanBottle(s scanner) (Bottle, error) {
	var (
		b          Bottle
		wineJSON   string
		label      sql.NullString
		drinkFrom  sql.NullInt64
		drinkUntil sql.NullInt64
		analyzedAt sql.NullTime
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.Quantity, &wineJSON, &label, &drinkFrom, &drinkUntil, &analyzedAt, &b.CreatedAt); err != nil {
		return Bottle{}, err
	}
	if err := json.Unmarshal([]byte(wineJSON), &b.Wine); err != nil {
		return Bottle{}, fmt.Errorf("failed to unmarshal wine for bottle %s: %w", b.ID, err)
	}
	if label.Valid {
		l := ReadinessLabel(label.String)
		b.Readiness = &l
	}
	if drinkFrom.Valid {
		b.DrinkFrom = Int(int(drinkFrom.Int64))
	}
	if drinkUntil.Valid {
		b.DrinkUntil = Int(int(drinkUntil.Int64))
	}
	if analyzedAt.Valid {
		t := analyzedAt.Time
		b.AnalyzedAt = &t
	}
	return b, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrBottleNotFound, id)
	}
	return nil
}

func nullLabel(l *ReadinessLabel) sql.NullString {
	if l == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*l), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
