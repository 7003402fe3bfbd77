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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name conflict")
	ErrTournamentOwnerInvalid = errors.New("tournament owner conflict or invalid")
)

type TournamentFilter struct {
	Status    *models.TournamentStatus
	Format    *models.TournamentFormat
	CreatedBy *int
	Limit     int
	Offset    int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter TournamentFilter) ([]*models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	UpdateStatusIf(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) (bool, error)
	MarkStarted(ctx context.Context, exec SQLExecutor, id int, totalRounds int) error
	UpdateProgress(ctx context.Context, exec SQLExecutor, id int, currentRound, totalRounds int) error
	MarkCompleted(ctx context.Context, exec SQLExecutor, id int) error
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, description, format, arity, status,
	base_multiplier, finals_multiplier, default_best_of,
	group_best_of, early_best_of, semifinal_best_of, final_best_of,
	swiss_rounds, group_count, advance_per_group, grand_final_reset,
	current_round, total_rounds, created_by, created_at, started_at, completed_at`

func scanTournament(row interface{ Scan(dest ...interface{}) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.Format,
		&t.Arity,
		&t.Status,
		&t.BaseMultiplier,
		&t.FinalsMultiplier,
		&t.DefaultBestOf,
		&t.GroupBestOf,
		&t.EarlyBestOf,
		&t.SemifinalBestOf,
		&t.FinalBestOf,
		&t.SwissRounds,
		&t.GroupCount,
		&t.AdvancePerGroup,
		&t.GrandFinalReset,
		&t.CurrentRound,
		&t.TotalRounds,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.StartedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			name, description, format, arity, status,
			base_multiplier, finals_multiplier, default_best_of,
			group_best_of, early_best_of, semifinal_best_of, final_best_of,
			swiss_rounds, group_count, advance_per_group, grand_final_reset,
			created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		tournament.Name,
		tournament.Description,
		tournament.Format,
		tournament.Arity,
		tournament.Status,
		tournament.BaseMultiplier,
		tournament.FinalsMultiplier,
		tournament.DefaultBestOf,
		tournament.GroupBestOf,
		tournament.EarlyBestOf,
		tournament.SemifinalBestOf,
		tournament.FinalBestOf,
		tournament.SwissRounds,
		tournament.GroupCount,
		tournament.AdvancePerGroup,
		tournament.GrandFinalReset,
		tournament.CreatedBy,
	).Scan(&tournament.ID, &tournament.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	tournament, err := scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament by id %d: %w", id, err)
	}
	return tournament, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter TournamentFilter) ([]*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Format != nil {
		query += fmt.Sprintf(" AND format = $%d", argID)
		args = append(args, *filter.Format)
		argID++
	}
	if filter.CreatedBy != nil {
		query += fmt.Sprintf(" AND created_by = $%d", argID)
		args = append(args, *filter.CreatedBy)
		argID++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		tournament, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, tournament)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

// Update rewrites the configurable fields. The service layer only calls it
// while the tournament is still a draft, so bracket-affecting settings can
// never drift under a generated bracket.
func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET name = $1, description = $2, format = $3, arity = $4,
		    base_multiplier = $5, finals_multiplier = $6, default_best_of = $7,
		    group_best_of = $8, early_best_of = $9, semifinal_best_of = $10, final_best_of = $11,
		    swiss_rounds = $12, group_count = $13, advance_per_group = $14, grand_final_reset = $15
		WHERE id = $16`

	result, err := executor.ExecContext(ctx, query,
		tournament.Name,
		tournament.Description,
		tournament.Format,
		tournament.Arity,
		tournament.BaseMultiplier,
		tournament.FinalsMultiplier,
		tournament.DefaultBestOf,
		tournament.GroupBestOf,
		tournament.EarlyBestOf,
		tournament.SemifinalBestOf,
		tournament.FinalBestOf,
		tournament.SwissRounds,
		tournament.GroupCount,
		tournament.AdvancePerGroup,
		tournament.GrandFinalReset,
		tournament.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// UpdateStatusIf performs the compare-and-swap status transition. It
// reports false when the row exists but its status no longer matches
// from, which is how concurrent transitions lose the race.
func (r *postgresTournamentRepository) UpdateStatusIf(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) (bool, error) {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`

	result, err := executor.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update status for tournament %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *postgresTournamentRepository) MarkStarted(ctx context.Context, exec SQLExecutor, id int, totalRounds int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET started_at = NOW(), current_round = 1, total_rounds = $1
		WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, totalRounds, id)
	if err != nil {
		return fmt.Errorf("failed to mark tournament %d started: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateProgress(ctx context.Context, exec SQLExecutor, id int, currentRound, totalRounds int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET current_round = $1, total_rounds = $2 WHERE id = $3`

	result, err := executor.ExecContext(ctx, query, currentRound, totalRounds, id)
	if err != nil {
		return fmt.Errorf("failed to update progress for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// MarkCompleted is guarded on in_progress so a replayed final result
// cannot complete the same tournament twice.
func (r *postgresTournamentRepository) MarkCompleted(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments
		SET status = $1, completed_at = NOW()
		WHERE id = $2 AND status = $3`

	result, err := executor.ExecContext(ctx, query, models.StatusCompleted, id, models.StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to mark tournament %d completed: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM tournaments WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "tournaments_name_key" {
				return ErrTournamentNameConflict
			}
		case "23503": // foreign_key_violation
			if pqErr.Constraint == "tournaments_created_by_fkey" {
				return ErrTournamentOwnerInvalid
			}
		}
	}
	return err
}
