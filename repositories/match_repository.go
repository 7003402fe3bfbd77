package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/smashpoint/league-system/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchPositionConflict  = errors.New("match position conflict")
	ErrMatchEnrollmentInvalid = errors.New("match enrollment conflict or invalid")
	ErrMatchRoundInvalid      = errors.New("match round conflict or invalid")
	ErrMatchSourceInvalid     = errors.New("match source reference conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, round *int, segment *models.Segment, status *models.MatchStatus) ([]*models.Match, error)
	ListCompletedByPlayer(ctx context.Context, exec SQLExecutor, playerID, limit, offset int) ([]*models.Match, error)
	UpdateSources(ctx context.Context, exec SQLExecutor, id int, source1 *int, source1TakeLoser bool, source2 *int, source2TakeLoser bool) error
	UpdateSlotsStatusWinner(ctx context.Context, exec SQLExecutor, match *models.Match) error
	UpdateStatusIf(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchStatus) (bool, error)
	CompleteIf(ctx context.Context, exec SQLExecutor, match *models.Match) (bool, error)
	SetBestOfIf(ctx context.Context, exec SQLExecutor, id int, bestOf *int) (bool, error)
	ClearNextFlag(ctx context.Context, exec SQLExecutor, tournamentID int) error
	SetNextFlag(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, round_id, round_number, position, segment,
	slot1_enrollment_id, slot2_enrollment_id,
	source1_match_id, source1_take_loser, source2_match_id, source2_take_loser,
	winner_enrollment_id, best_of, status, walkover_reason, is_next,
	played_at, created_at`

func scanMatch(row interface{ Scan(dest ...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.RoundID,
		&m.RoundNumber,
		&m.Position,
		&m.Segment,
		&m.Slot1EnrollmentID,
		&m.Slot2EnrollmentID,
		&m.Source1MatchID,
		&m.Source1TakeLoser,
		&m.Source2MatchID,
		&m.Source2TakeLoser,
		&m.WinnerEnrollmentID,
		&m.BestOf,
		&m.Status,
		&m.WalkoverReason,
		&m.IsNext,
		&m.PlayedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (
			tournament_id, round_id, round_number, position, segment,
			slot1_enrollment_id, slot2_enrollment_id,
			winner_enrollment_id, best_of, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.TournamentID,
		match.RoundID,
		match.RoundNumber,
		match.Position,
		match.Segment,
		match.Slot1EnrollmentID,
		match.Slot2EnrollmentID,
		match.WinnerEnrollmentID,
		match.BestOf,
		match.Status,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatch(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, round *int, segment *models.Segment, status *models.MatchStatus) ([]*models.Match, error) {
	executor := r.getExecutor(exec)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if round != nil {
		queryBuilder.WriteString(" AND round_number = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *round)
		placeholderIndex++
	}
	if segment != nil {
		queryBuilder.WriteString(" AND segment = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *segment)
		placeholderIndex++
	}
	if status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *status)
	}

	queryBuilder.WriteString(" ORDER BY round_number ASC, position ASC")

	rows, err := executor.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

// ListCompletedByPlayer returns the player's finished matches, newest
// first. Both enrollment slots are checked, so doubles partners see the
// match too.
func (r *postgresMatchRepository) ListCompletedByPlayer(ctx context.Context, exec SQLExecutor, playerID, limit, offset int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)

	query := `SELECT` + matchColumns + ` FROM matches
		WHERE status IN ($1, $2) AND (
			slot1_enrollment_id IN (SELECT id FROM enrollments WHERE player_id = $3 OR partner_id = $3)
			OR slot2_enrollment_id IN (SELECT id FROM enrollments WHERE player_id = $3 OR partner_id = $3))
		ORDER BY played_at DESC NULLS LAST, id DESC
		LIMIT $4 OFFSET $5`

	rows, err := executor.QueryContext(ctx, query, models.MatchStatusCompleted, models.MatchStatusWalkover, playerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for player %d: %w", playerID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

// UpdateSources wires the advance-from references once generated matches
// have database ids. Only the bracket persister calls it.
func (r *postgresMatchRepository) UpdateSources(ctx context.Context, exec SQLExecutor, id int, source1 *int, source1TakeLoser bool, source2 *int, source2TakeLoser bool) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET source1_match_id = $1, source1_take_loser = $2,
		    source2_match_id = $3, source2_take_loser = $4
		WHERE id = $5`

	result, err := executor.ExecContext(ctx, query, source1, source1TakeLoser, source2, source2TakeLoser, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// UpdateSlotsStatusWinner is the propagation write: slot fills, byes and
// pending-to-ready flips all go through it.
func (r *postgresMatchRepository) UpdateSlotsStatusWinner(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET slot1_enrollment_id = $1, slot2_enrollment_id = $2,
		    winner_enrollment_id = $3, status = $4
		WHERE id = $5`

	result, err := executor.ExecContext(ctx, query,
		match.Slot1EnrollmentID,
		match.Slot2EnrollmentID,
		match.WinnerEnrollmentID,
		match.Status,
		match.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateStatusIf(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchStatus) (bool, error) {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET status = $1 WHERE id = $2 AND status = $3`

	result, err := executor.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update status for match %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

// CompleteIf finalizes a match only while it is still ready or
// in_progress. A false return means another result got there first or
// the match was never playable, and the caller must abort its
// transaction.
func (r *postgresMatchRepository) CompleteIf(ctx context.Context, exec SQLExecutor, match *models.Match) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET winner_enrollment_id = $1, status = $2, walkover_reason = $3, played_at = NOW()
		WHERE id = $4 AND status IN ($5, $6)`

	result, err := executor.ExecContext(ctx, query,
		match.WinnerEnrollmentID,
		match.Status,
		match.WalkoverReason,
		match.ID,
		models.MatchStatusReady,
		models.MatchStatusInProgress,
	)
	if err != nil {
		return false, r.handleMatchError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

// SetBestOfIf refuses terminal matches at the SQL level so a late
// override cannot rewrite history.
func (r *postgresMatchRepository) SetBestOfIf(ctx context.Context, exec SQLExecutor, id int, bestOf *int) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET best_of = $1
		WHERE id = $2 AND status NOT IN ($3, $4, $5)`

	result, err := executor.ExecContext(ctx, query,
		bestOf,
		id,
		models.MatchStatusCompleted,
		models.MatchStatusBye,
		models.MatchStatusWalkover,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set best-of for match %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *postgresMatchRepository) ClearNextFlag(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET is_next = FALSE WHERE tournament_id = $1 AND is_next = TRUE`

	if _, err := executor.ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to clear next flag for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresMatchRepository) SetNextFlag(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET is_next = TRUE WHERE id = $1`

	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to set next flag for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "matches_round_id_position_key" {
				return ErrMatchPositionConflict
			}
		case "23503": // foreign_key_violation
			switch pqErr.Constraint {
			case "matches_round_id_fkey", "matches_tournament_id_fkey":
				return ErrMatchRoundInvalid
			case "matches_slot1_enrollment_id_fkey", "matches_slot2_enrollment_id_fkey", "matches_winner_enrollment_id_fkey":
				return ErrMatchEnrollmentInvalid
			case "matches_source1_match_id_fkey", "matches_source2_match_id_fkey":
				return ErrMatchSourceInvalid
			}
		}
	}
	return err
}
