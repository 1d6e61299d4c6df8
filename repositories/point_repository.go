package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ESD-II/tracker-website/models"
	"github.com/lib/pq"
)

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	ErrPointNotFound          = errors.New("point not found")
	ErrPointAlreadyFinalized  = errors.New("point already finalized")
	ErrCoordinatePointInvalid = errors.New("coordinate references unknown point")
)

// foreign_key_violation: a coordinate arrived for a point id the store does
// not know. Permanent by definition, the caller drops the sample.
const pqFKViolation = "23503"

type PointRepository interface {
	Create(ctx context.Context, start models.ScoreSnapshot) (int, error)
	Finalize(ctx context.Context, id int, end models.ScoreSnapshot, endTime time.Time) error
	AppendCoordinate(ctx context.Context, pointID int, relativeMS int, x, y, z float64) error
	GetByID(ctx context.Context, id int) (*models.Point, error)
	ListCoordinates(ctx context.Context, pointID int) ([]*models.Coordinate, error)
	ListFinalized(ctx context.Context, limit, offset int) ([]*models.Point, error)
}

type postgresPointRepository struct {
	db *sql.DB
}

func NewPostgresPointRepository(db *sql.DB) PointRepository {
	return &postgresPointRepository{db: db}
}

func (r *postgresPointRepository) Create(ctx context.Context, start models.ScoreSnapshot) (int, error) {
	query := `
		INSERT INTO points
			(server_player,
			 team1_points_at_start, team2_points_at_start,
			 team1_games_at_start, team2_games_at_start, set_number_at_start)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int
	err := r.db.QueryRowContext(ctx, query,
		start.ServerPlayer,
		start.Team1Points,
		start.Team2Points,
		start.Team1Games,
		start.Team2Games,
		start.SetNumber,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create point: %w", err)
	}
	return id, nil
}

// Finalize writes the end snapshot and end time exactly once. Re-finalizing
// an already-finalized point returns ErrPointAlreadyFinalized, which callers
// treat as a no-op; the WHERE clause is what makes shutdown finalization
// idempotent against a concurrent stop signal.
func (r *postgresPointRepository) Finalize(ctx context.Context, id int, end models.ScoreSnapshot, endTime time.Time) error {
	query := `
		UPDATE points
		SET recorded_end_time = $2,
		    team1_points_at_end = $3, team2_points_at_end = $4,
		    team1_games_at_end = $5, team2_games_at_end = $6,
		    set_number_at_end = $7
		WHERE id = $1 AND recorded_end_time IS NULL`

	result, err := r.db.ExecContext(ctx, query,
		id,
		endTime,
		end.Team1Points,
		end.Team2Points,
		end.Team1Games,
		end.Team2Games,
		end.SetNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize point %d: %w", id, err)
	}

	if err := checkAffectedRows(result, ErrPointNotFound); err != nil {
		if !errors.Is(err, ErrPointNotFound) {
			return err
		}
		// Zero rows: either the point never existed or it is already closed.
		var endTimeSet sql.NullTime
		scanErr := r.db.QueryRowContext(ctx,
			`SELECT recorded_end_time FROM points WHERE id = $1`, id,
		).Scan(&endTimeSet)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return ErrPointNotFound
		}
		if scanErr != nil {
			return fmt.Errorf("failed to check point %d after finalize: %w", id, scanErr)
		}
		return ErrPointAlreadyFinalized
	}
	return nil
}

func (r *postgresPointRepository) AppendCoordinate(ctx context.Context, pointID int, relativeMS int, x, y, z float64) error {
	query := `
		INSERT INTO coordinates (point_id, relative_time_ms, x, y, z)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, pointID, relativeMS, x, y, z)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqFKViolation {
			return ErrCoordinatePointInvalid
		}
		return fmt.Errorf("failed to append coordinate for point %d: %w", pointID, err)
	}
	return nil
}

const pointColumns = `
	id, recorded_start_time, recorded_end_time, server_player,
	team1_points_at_start, team2_points_at_start,
	team1_games_at_start, team2_games_at_start, set_number_at_start,
	team1_points_at_end, team2_points_at_end,
	team1_games_at_end, team2_games_at_end, set_number_at_end`

func scanPoint(row interface{ Scan(...interface{}) error }) (*models.Point, error) {
	point := &models.Point{}
	err := row.Scan(
		&point.ID,
		&point.StartTime,
		&point.EndTime,
		&point.ServerPlayer,
		&point.Team1PointsAtStart,
		&point.Team2PointsAtStart,
		&point.Team1GamesAtStart,
		&point.Team2GamesAtStart,
		&point.SetNumberAtStart,
		&point.Team1PointsAtEnd,
		&point.Team2PointsAtEnd,
		&point.Team1GamesAtEnd,
		&point.Team2GamesAtEnd,
		&point.SetNumberAtEnd,
	)
	if err != nil {
		return nil, err
	}
	return point, nil
}

func (r *postgresPointRepository) GetByID(ctx context.Context, id int) (*models.Point, error) {
	query := `SELECT ` + pointColumns + ` FROM points WHERE id = $1`

	point, err := scanPoint(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPointNotFound
		}
		return nil, fmt.Errorf("failed to scan point by id %d: %w", id, err)
	}
	return point, nil
}

// ListCoordinates returns the full trace for a point ordered by
// relative_time_ms, the order replays depend on.
func (r *postgresPointRepository) ListCoordinates(ctx context.Context, pointID int) ([]*models.Coordinate, error) {
	query := `
		SELECT id, point_id, relative_time_ms, x, y, z, recorded_at
		FROM coordinates
		WHERE point_id = $1
		ORDER BY relative_time_ms ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, pointID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coordinates for point %d: %w", pointID, err)
	}
	defer rows.Close()

	coords := make([]*models.Coordinate, 0)
	for rows.Next() {
		var c models.Coordinate
		if scanErr := rows.Scan(&c.ID, &c.PointID, &c.RelativeTimeMS, &c.X, &c.Y, &c.Z, &c.RecordedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan coordinate for point %d: %w", pointID, scanErr)
		}
		coords = append(coords, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coordinates for point %d: %w", pointID, err)
	}
	return coords, nil
}

func (r *postgresPointRepository) ListFinalized(ctx context.Context, limit, offset int) ([]*models.Point, error) {
	query := `SELECT ` + pointColumns + `
		FROM points
		WHERE recorded_end_time IS NOT NULL
		ORDER BY recorded_start_time DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query finalized points: %w", err)
	}
	defer rows.Close()

	points := make([]*models.Point, 0)
	for rows.Next() {
		point, scanErr := scanPoint(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan finalized point: %w", scanErr)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating finalized points: %w", err)
	}
	return points, nil
}
