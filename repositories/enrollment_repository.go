package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/smashpoint/league-system/models"
)

var (
	ErrEnrollmentNotFound   = errors.New("enrollment not found")
	ErrEnrollmentConflict   = errors.New("player already enrolled in tournament")
	ErrEnrollmentRefInvalid = errors.New("enrollment reference conflict or invalid")
)

type EnrollmentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Enrollment, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Enrollment, error)
	HasPlayer(ctx context.Context, tournamentID, playerID int) (bool, error)
	UpdateSeed(ctx context.Context, exec SQLExecutor, id, seed int, locked bool) error
	UpdateSwiss(ctx context.Context, exec SQLExecutor, id, points int, opponents []int64) error
	AssignGroup(ctx context.Context, exec SQLExecutor, id, groupID int) error
	UpdateGroupStats(ctx context.Context, exec SQLExecutor, enrollment *models.Enrollment) error
	SetEliminated(ctx context.Context, exec SQLExecutor, id, round int) error
	SetPlacement(ctx context.Context, exec SQLExecutor, id, placement int) error
	Delete(ctx context.Context, id int) error
}

type postgresEnrollmentRepository struct {
	db *sql.DB
}

func NewPostgresEnrollmentRepository(db *sql.DB) EnrollmentRepository {
	return &postgresEnrollmentRepository{db: db}
}

func (r *postgresEnrollmentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEnrollmentRepository) Create(ctx context.Context, exec SQLExecutor, enrollment *models.Enrollment) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO enrollments (tournament_id, player_id, partner_id, seed, seed_locked, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		enrollment.TournamentID,
		enrollment.PlayerID,
		enrollment.PartnerID,
		enrollment.Seed,
		enrollment.SeedLocked,
		enrollment.Active,
	).Scan(&enrollment.ID, &enrollment.CreatedAt)

	return r.handleEnrollmentError(err)
}

func (r *postgresEnrollmentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Enrollment, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, player_id, partner_id, seed, seed_locked,
		       swiss_points, swiss_opponents, group_id,
		       group_points, group_wins, group_losses, game_diff,
		       active, eliminated_in_round, placement, created_at
		FROM enrollments
		WHERE id = $1`

	e := &models.Enrollment{}
	var opponents pq.Int64Array
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&e.ID,
		&e.TournamentID,
		&e.PlayerID,
		&e.PartnerID,
		&e.Seed,
		&e.SeedLocked,
		&e.SwissPoints,
		&opponents,
		&e.GroupID,
		&e.GroupPoints,
		&e.GroupWins,
		&e.GroupLosses,
		&e.GameDiff,
		&e.Active,
		&e.EliminatedInRound,
		&e.Placement,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to scan enrollment by id %d: %w", id, err)
	}
	e.SwissOpponents = opponents
	return e, nil
}

// ListByTournament returns enrollments with player and partner profiles
// attached, ordered by seed then id so generation sees a stable order.
func (r *postgresEnrollmentRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Enrollment, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT e.id, e.tournament_id, e.player_id, e.partner_id, e.seed, e.seed_locked,
		       e.swiss_points, e.swiss_opponents, e.group_id,
		       e.group_points, e.group_wins, e.group_losses, e.game_diff,
		       e.active, e.eliminated_in_round, e.placement, e.created_at,
		       p.display_name, p.rating,
		       pt.display_name, pt.rating
		FROM enrollments e
		JOIN players p ON p.id = e.player_id
		LEFT JOIN players pt ON pt.id = e.partner_id
		WHERE e.tournament_id = $1
		ORDER BY e.seed ASC, e.id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	enrollments := make([]*models.Enrollment, 0)
	for rows.Next() {
		e := &models.Enrollment{}
		var opponents pq.Int64Array
		var playerName string
		var playerRating int
		var partnerName sql.NullString
		var partnerRating sql.NullInt64

		err := rows.Scan(
			&e.ID,
			&e.TournamentID,
			&e.PlayerID,
			&e.PartnerID,
			&e.Seed,
			&e.SeedLocked,
			&e.SwissPoints,
			&opponents,
			&e.GroupID,
			&e.GroupPoints,
			&e.GroupWins,
			&e.GroupLosses,
			&e.GameDiff,
			&e.Active,
			&e.EliminatedInRound,
			&e.Placement,
			&e.CreatedAt,
			&playerName,
			&playerRating,
			&partnerName,
			&partnerRating,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		e.SwissOpponents = opponents
		e.Player = &models.Player{ID: e.PlayerID, DisplayName: playerName, Rating: playerRating}
		if e.PartnerID != nil && partnerName.Valid {
			e.Partner = &models.Player{
				ID:          *e.PartnerID,
				DisplayName: partnerName.String,
				Rating:      int(partnerRating.Int64),
			}
		}
		enrollments = append(enrollments, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during enrollment rows iteration: %w", err)
	}
	return enrollments, nil
}

// HasPlayer also matches the partner column, so one person cannot enter
// the same tournament on two different enrollments.
func (r *postgresEnrollmentRepository) HasPlayer(ctx context.Context, tournamentID, playerID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE tournament_id = $1 AND (player_id = $2 OR partner_id = $2)
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, tournamentID, playerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check enrollment existence: %w", err)
	}
	return exists, nil
}

func (r *postgresEnrollmentRepository) UpdateSeed(ctx context.Context, exec SQLExecutor, id, seed int, locked bool) error {
	executor := r.getExecutor(exec)
	query := `UPDATE enrollments SET seed = $1, seed_locked = $2 WHERE id = $3`

	result, err := executor.ExecContext(ctx, query, seed, locked, id)
	if err != nil {
		return fmt.Errorf("failed to update seed for enrollment %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEnrollmentNotFound)
}

func (r *postgresEnrollmentRepository) UpdateSwiss(ctx context.Context, exec SQLExecutor, id, points int, opponents []int64) error {
	executor := r.getExecutor(exec)
	query := `UPDATE enrollments SET swiss_points = $1, swiss_opponents = $2 WHERE id = $3`

	result, err := executor.ExecContext(ctx, query, points, pq.Array(opponents), id)
	if err != nil {
		return fmt.Errorf("failed to update swiss state for enrollment %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEnrollmentNotFound)
}

func (r *postgresEnrollmentRepository) AssignGroup(ctx context.Context, exec SQLExecutor, id, groupID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE enrollments SET group_id = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, groupID, id)
	if err != nil {
		return r.handleEnrollmentError(err)
	}
	return checkAffectedRows(result, ErrEnrollmentNotFound)
}

func (r *postgresEnrollmentRepository) UpdateGroupStats(ctx context.Context, exec SQLExecutor, enrollment *models.Enrollment) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE enrollments
		SET group_points = $1, group_wins = $2, group_losses = $3, game_diff = $4
		WHERE id = $5`

	result, err := executor.ExecContext(ctx, query,
		enrollment.GroupPoints,
		enrollment.GroupWins,
		enrollment.GroupLosses,
		enrollment.GameDiff,
		enrollment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group stats for enrollment %d: %w", enrollment.ID, err)
	}
	return checkAffectedRows(result, ErrEnrollmentNotFound)
}

func (r *postgresEnrollmentRepository) SetEliminated(ctx context.Context, exec SQLExecutor, id, round int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE enrollments SET active = FALSE, eliminated_in_round = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, round, id)
	if err != nil {
		return fmt.Errorf("failed to mark enrollment %d eliminated: %w", id, err)
	}
	return checkAffectedRows(result, ErrEnrollmentNotFound)
}

func (r *postgresEnrollmentRepository) SetPlacement(ctx context.Context, exec SQLExecutor, id, placement int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE enrollments SET placement = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, placement, id)
	if err != nil {
		return fmt.Errorf("failed to set placement for enrollment %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEnrollmentNotFound)
}

func (r *postgresEnrollmentRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM enrollments WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete enrollment %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEnrollmentNotFound)
}

func (r *postgresEnrollmentRepository) handleEnrollmentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "enrollments_tournament_id_player_id_key" {
				return ErrEnrollmentConflict
			}
		case "23503": // foreign_key_violation
			return ErrEnrollmentRefInvalid
		}
	}
	return err
}
