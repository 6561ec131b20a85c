package evening

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"wine-cellar/internal/database"
)

// SQLitePlanStore keeps plans as JSON documents in the evening_plans table.
type SQLitePlanStore struct {
	db database.DBTX
}

// NewSQLitePlanStore creates a new SQLitePlanStore.
func NewSQLitePlanStore(d database.DBTX) *SQLitePlanStore {
	return &SQLitePlanStore{db: d}
}

// Save upserts a plan by id. Only LIVE and COMPLETE plans are stored.
func (s *SQLitePlanStore) Save(ctx context.Context, plan Plan) error {
	if plan.ID == "" {
		return errors.New("plan has no id")
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evening_plans (id, user_id, status, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		plan.ID, plan.UserID, string(plan.Status), string(data), plan.CreatedAt.UTC(), plan.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) && plan.Status == StateLive {
			return fmt.Errorf("failed to save plan %s: %w", plan.ID, ErrActivePlanExists)
		}
		return fmt.Errorf("failed to save plan %s: %w", plan.ID, err)
	}
	return nil
}

// isUniqueViolation matches the live-plan index; the id conflict is handled by the upsert.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// GetActive returns the user's LIVE plan, or nil.
func (s *SQLitePlanStore) GetActive(ctx context.Context, userID string) (*Plan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM evening_plans WHERE user_id = ? AND status = 'LIVE'`, userID)
	return scanPlan(row)
}

// Get returns a plan by id, or nil.
func (s *SQLitePlanStore) Get(ctx context.Context, id string) (*Plan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM evening_plans WHERE id = ?`, id)
	return scanPlan(row)
}

func scanPlan(row *sql.Row) (*Plan, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}
	return &plan, nil
}
