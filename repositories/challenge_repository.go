package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/smashpoint/league-system/models"
)

var (
	ErrChallengeNotFound      = errors.New("challenge not found")
	ErrChallengeTokenConflict = errors.New("challenge token conflict")
	ErrChallengePlayerInvalid = errors.New("challenge player conflict or invalid")
)

type ChallengeRepository interface {
	Create(ctx context.Context, challenge *models.Challenge) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Challenge, error)
	GetByToken(ctx context.Context, token string) (*models.Challenge, error)
	ListForPlayer(ctx context.Context, playerID int, status *models.ChallengeStatus, limit, offset int) ([]*models.Challenge, error)
	UpdateStatusIf(ctx context.Context, exec SQLExecutor, id int, from, to models.ChallengeStatus) (bool, error)
	CompleteIf(ctx context.Context, exec SQLExecutor, challenge *models.Challenge) (bool, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

type postgresChallengeRepository struct {
	db *sql.DB
}

func NewPostgresChallengeRepository(db *sql.DB) ChallengeRepository {
	return &postgresChallengeRepository{db: db}
}

func (r *postgresChallengeRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const challengeColumns = `
	id, token, challenger_id, challenger_partner_id, opponent_id, opponent_partner_id,
	status, winner_side, score, challenger_delta, opponent_delta,
	expires_at, created_at, completed_at`

func scanChallenge(row interface{ Scan(dest ...interface{}) error }) (*models.Challenge, error) {
	c := &models.Challenge{}
	err := row.Scan(
		&c.ID,
		&c.Token,
		&c.ChallengerID,
		&c.ChallengerPartner,
		&c.OpponentID,
		&c.OpponentPartner,
		&c.Status,
		&c.WinnerSide,
		&c.Score,
		&c.ChallengerDelta,
		&c.OpponentDelta,
		&c.ExpiresAt,
		&c.CreatedAt,
		&c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *postgresChallengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	query := `
		INSERT INTO challenges (
			token, challenger_id, challenger_partner_id, opponent_id, opponent_partner_id,
			status, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		challenge.Token,
		challenge.ChallengerID,
		challenge.ChallengerPartner,
		challenge.OpponentID,
		challenge.OpponentPartner,
		challenge.Status,
		challenge.ExpiresAt,
	).Scan(&challenge.ID, &challenge.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				return ErrChallengeTokenConflict
			case "23503": // foreign_key_violation
				return ErrChallengePlayerInvalid
			}
		}
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

func (r *postgresChallengeRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Challenge, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + challengeColumns + ` FROM challenges WHERE id = $1`

	challenge, err := scanChallenge(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to scan challenge by id %d: %w", id, err)
	}
	return challenge, nil
}

func (r *postgresChallengeRepository) GetByToken(ctx context.Context, token string) (*models.Challenge, error) {
	query := `SELECT` + challengeColumns + ` FROM challenges WHERE token = $1`

	challenge, err := scanChallenge(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to scan challenge by token: %w", err)
	}
	return challenge, nil
}

func (r *postgresChallengeRepository) ListForPlayer(ctx context.Context, playerID int, status *models.ChallengeStatus, limit, offset int) ([]*models.Challenge, error) {
	query := `SELECT` + challengeColumns + ` FROM challenges
		WHERE (challenger_id = $1 OR opponent_id = $1 OR challenger_partner_id = $1 OR opponent_partner_id = $1)`
	args := []interface{}{playerID}
	argID := 2

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *status)
		argID++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, limit)
		argID++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges for player %d: %w", playerID, err)
	}
	defer rows.Close()

	challenges := make([]*models.Challenge, 0)
	for rows.Next() {
		challenge, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge row: %w", err)
		}
		challenges = append(challenges, challenge)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during challenge rows iteration: %w", err)
	}
	return challenges, nil
}

func (r *postgresChallengeRepository) UpdateStatusIf(ctx context.Context, exec SQLExecutor, id int, from, to models.ChallengeStatus) (bool, error) {
	executor := r.getExecutor(exec)
	query := `UPDATE challenges SET status = $1 WHERE id = $2 AND status = $3`

	result, err := executor.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update status for challenge %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

// CompleteIf records the outcome only while the challenge is still
// accepted, so a double submission cannot apply rating deltas twice.
func (r *postgresChallengeRepository) CompleteIf(ctx context.Context, exec SQLExecutor, challenge *models.Challenge) (bool, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE challenges
		SET status = $1, winner_side = $2, score = $3,
		    challenger_delta = $4, opponent_delta = $5, completed_at = NOW()
		WHERE id = $6 AND status = $7`

	result, err := executor.ExecContext(ctx, query,
		models.ChallengeCompleted,
		challenge.WinnerSide,
		challenge.Score,
		challenge.ChallengerDelta,
		challenge.OpponentDelta,
		challenge.ID,
		models.ChallengeAccepted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete challenge %d: %w", challenge.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

// ExpirePending sweeps timed-out invitations in one statement.
func (r *postgresChallengeRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE challenges SET status = $1 WHERE status = $2 AND expires_at < $3`

	result, err := r.db.ExecContext(ctx, query, models.ChallengeExpired, models.ChallengePending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending challenges: %w", err)
	}
	return result.RowsAffected()
}
