package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/example/freight-matching/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type PostgresStore struct {
	db *sqlx.DB
	q  querier
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB wraps an existing connection pool.
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) Close() error { return p.db.Close() }

// Migrate applies the embedded schema. Statements are idempotent.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	b, err := migrations.ReadFile("migrations/001_create_marketplace.sql")
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, string(b))
	return err
}

const selectRoutes = `SELECT id, COALESCE(driver_id, '') AS driver_id, origin, destination,
	COALESCE(to_char(departure_date, 'YYYY-MM-DD'), '') AS departure_date,
	to_char(return_date, 'YYYY-MM-DD') AS return_date,
	available_capacity_tons, price_per_ton, status
	FROM scheduled_routes WHERE status = $1 ORDER BY created_at, id`

func (p *PostgresStore) ListRoutes(ctx context.Context, f RouteFilter) ([]models.Route, error) {
	var out []models.Route
	if err := p.q.SelectContext(ctx, &out, selectRoutes, f.Status); err != nil {
		return nil, fmt.Errorf("list routes: %w", classify(err))
	}
	return out, nil
}

const (
	selectImmediateLoads = `SELECT id, COALESCE(shipper_id, '') AS shipper_id, origin, destination,
	COALESCE(to_char(pickup_date, 'YYYY-MM-DD'), '') AS pickup_date,
	COALESCE(cargo_type, '') AS cargo_type, weight_tons, offered_price, status
	FROM loads WHERE status = $1 ORDER BY created_at, id`
	selectScheduledLoads = `SELECT id, COALESCE(shipper_id, '') AS shipper_id, origin, destination,
	COALESCE(to_char(pickup_date, 'YYYY-MM-DD'), '') AS pickup_date,
	COALESCE(cargo_type, '') AS cargo_type, weight_tons, max_budget, status
	FROM scheduled_loads WHERE status = $1 ORDER BY created_at, id`
)

func (p *PostgresStore) ListLoads(ctx context.Context, f LoadFilter) ([]models.Load, error) {
	var (
		query string
		tag   func(models.Load) models.Load
	)
	switch f.Source {
	case models.SourceImmediate:
		query, tag = selectImmediateLoads, models.NewImmediateLoad
	case models.SourceScheduled:
		query, tag = selectScheduledLoads, models.NewScheduledLoad
	default:
		return nil, fmt.Errorf("list loads: unknown source %q", f.Source)
	}
	var rows []models.Load
	if err := p.q.SelectContext(ctx, &rows, query, f.Status); err != nil {
		return nil, fmt.Errorf("list %s loads: %w", f.Source, classify(err))
	}
	for i := range rows {
		rows[i] = tag(rows[i])
	}
	return rows, nil
}

func (p *PostgresStore) UpdateRouteStatus(ctx context.Context, id string, from, to models.RouteStatus) error {
	return p.conditionalUpdate(ctx, "scheduled_routes", id, string(from), string(to))
}

func (p *PostgresStore) UpdateLoadStatus(ctx context.Context, id string, source models.LoadSource, from, to models.LoadStatus) error {
	table, err := loadTable(source)
	if err != nil {
		return err
	}
	return p.conditionalUpdate(ctx, table, id, string(from), string(to))
}

// conditionalUpdate flips status only when the row still holds the expected
// value, so two racing commits cannot both claim it.
func (p *PostgresStore) conditionalUpdate(ctx context.Context, table, id, from, to string) error {
	res, err := p.q.ExecContext(ctx, `UPDATE `+table+` SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("update %s status: %w", table, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s status: %w", table, classify(err))
	}
	if n > 0 {
		return nil
	}
	var current string
	err = p.q.GetContext(ctx, &current, `SELECT status FROM `+table+` WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s status: %w", table, classify(err))
	}
	return ErrStatusConflict
}

const insertMatch = `INSERT INTO matches (id, candidate_id, route_id, load_id, load_source, status, suggested_price)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (candidate_id) DO NOTHING
	RETURNING created_at`

func (p *PostgresStore) InsertMatch(ctx context.Context, rec MatchRecord) (models.Match, error) {
	m := models.Match{
		ID:             uuid.NewString(),
		CandidateID:    rec.CandidateID,
		RouteID:        rec.RouteID,
		LoadID:         rec.LoadID,
		LoadSource:     rec.LoadSource,
		Status:         rec.Status,
		SuggestedPrice: rec.SuggestedPrice,
	}
	err := p.q.QueryRowxContext(ctx, insertMatch,
		m.ID, m.CandidateID, m.RouteID, m.LoadID, m.LoadSource, m.Status, m.SuggestedPrice,
	).Scan(&m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Match{}, ErrDuplicateMatch
	}
	if err != nil {
		return models.Match{}, fmt.Errorf("insert match: %w", classify(err))
	}
	return m, nil
}

const selectOrphans = `SELECT 'route' AS kind, r.id, '' AS source, r.status
	FROM scheduled_routes r
	WHERE r.status = 'partially_filled'
	  AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.route_id = r.id)
	UNION ALL
	SELECT 'load', l.id, 'immediate', l.status
	FROM loads l
	WHERE l.status = 'matched'
	  AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.load_id = l.id)
	UNION ALL
	SELECT 'load', s.id, 'scheduled', s.status
	FROM scheduled_loads s
	WHERE s.status = 'matched'
	  AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.candidate_id = m.route_id || '-' || s.id)`

func (p *PostgresStore) ListOrphans(ctx context.Context) ([]models.Orphan, error) {
	var out []models.Orphan
	if err := p.q.SelectContext(ctx, &out, selectOrphans); err != nil {
		return nil, fmt.Errorf("list orphans: %w", classify(err))
	}
	return out, nil
}

// InTx runs fn against a store bound to one transaction. A failed commit is
// reported as ErrAmbiguous since the server may have applied it.
func (p *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", classify(err))
	}
	if err := fn(&PostgresStore{db: p.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w: %v", ErrAmbiguous, err)
	}
	return nil
}

func loadTable(source models.LoadSource) (string, error) {
	switch source {
	case models.SourceImmediate:
		return "loads", nil
	case models.SourceScheduled:
		return "scheduled_loads", nil
	}
	return "", fmt.Errorf("unknown load source %q", source)
}

// classify tags driver errors as transient or ambiguous so callers can
// decide whether a retry is safe.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "57P03": // serialization_failure, deadlock_detected, cannot_connect_now
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrAmbiguous, err)
	}
	return err
}
