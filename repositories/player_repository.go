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
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerEmailConflict = errors.New("player email conflict")
)

type PlayerFilter struct {
	Search *string
	Role   *models.PlayerRole
	Limit  int
	Offset int
}

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error)
	GetByEmail(ctx context.Context, email string) (*models.Player, error)
	List(ctx context.Context, filter PlayerFilter) ([]*models.Player, error)
	UpdateProfile(ctx context.Context, player *models.Player) error
	UpdateAvatarKey(ctx context.Context, id int, key *string) error
	UpdateRole(ctx context.Context, id int, role models.PlayerRole) error
	UpdateStats(ctx context.Context, exec SQLExecutor, player *models.Player) error
	IncrementTournamentsPlayed(ctx context.Context, exec SQLExecutor, playerIDs []int) error
	IncrementTournamentsWon(ctx context.Context, exec SQLExecutor, playerIDs []int) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const playerColumns = `
	id, email, password_hash, display_name, role, rating,
	wins, losses, current_streak, best_streak,
	tournaments_played, tournaments_won, avatar_key, created_at`

func scanPlayer(row interface{ Scan(dest ...interface{}) error }) (*models.Player, error) {
	p := &models.Player{}
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.DisplayName,
		&p.Role,
		&p.Rating,
		&p.Wins,
		&p.Losses,
		&p.CurrentStreak,
		&p.BestStreak,
		&p.TournamentsPlayed,
		&p.TournamentsWon,
		&p.AvatarKey,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresPlayerRepository) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (email, password_hash, display_name, role, rating)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		player.Email,
		player.PasswordHash,
		player.DisplayName,
		player.Role,
		player.Rating,
	).Scan(&player.ID, &player.CreatedAt)

	return r.handlePlayerError(err)
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playerColumns + ` FROM players WHERE id = $1`

	player, err := scanPlayer(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player by id %d: %w", id, err)
	}
	return player, nil
}

func (r *postgresPlayerRepository) GetByEmail(ctx context.Context, email string) (*models.Player, error) {
	query := `SELECT` + playerColumns + ` FROM players WHERE email = $1`

	player, err := scanPlayer(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player by email: %w", err)
	}
	return player, nil
}

func (r *postgresPlayerRepository) List(ctx context.Context, filter PlayerFilter) ([]*models.Player, error) {
	query := `SELECT` + playerColumns + ` FROM players WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Search != nil && *filter.Search != "" {
		query += fmt.Sprintf(" AND (display_name ILIKE $%d OR email ILIKE $%d)", argID, argID)
		args = append(args, "%"+*filter.Search+"%")
		argID++
	}
	if filter.Role != nil {
		query += fmt.Sprintf(" AND role = $%d", argID)
		args = append(args, *filter.Role)
		argID++
	}

	query += " ORDER BY rating DESC, id ASC"

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
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, player)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during player rows iteration: %w", err)
	}
	return players, nil
}

func (r *postgresPlayerRepository) UpdateProfile(ctx context.Context, player *models.Player) error {
	query := `
		UPDATE players
		SET email = $1, display_name = $2
		WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, player.Email, player.DisplayName, player.ID)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) UpdateAvatarKey(ctx context.Context, id int, key *string) error {
	query := `UPDATE players SET avatar_key = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, key, id)
	if err != nil {
		return fmt.Errorf("failed to update avatar key for player %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) UpdateRole(ctx context.Context, id int, role models.PlayerRole) error {
	query := `UPDATE players SET role = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, role, id)
	if err != nil {
		return fmt.Errorf("failed to update role for player %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

// UpdateStats writes the rating and streak columns only. Callers mutate a
// player loaded inside the same transaction, so the write never clobbers
// profile fields edited concurrently.
func (r *postgresPlayerRepository) UpdateStats(ctx context.Context, exec SQLExecutor, player *models.Player) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE players
		SET rating = $1, wins = $2, losses = $3, current_streak = $4, best_streak = $5
		WHERE id = $6`

	result, err := executor.ExecContext(ctx, query,
		player.Rating,
		player.Wins,
		player.Losses,
		player.CurrentStreak,
		player.BestStreak,
		player.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stats for player %d: %w", player.ID, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) IncrementTournamentsPlayed(ctx context.Context, exec SQLExecutor, playerIDs []int) error {
	if len(playerIDs) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `UPDATE players SET tournaments_played = tournaments_played + 1 WHERE id = ANY($1)`

	if _, err := executor.ExecContext(ctx, query, pq.Array(playerIDs)); err != nil {
		return fmt.Errorf("failed to increment tournaments played: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) IncrementTournamentsWon(ctx context.Context, exec SQLExecutor, playerIDs []int) error {
	if len(playerIDs) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `UPDATE players SET tournaments_won = tournaments_won + 1 WHERE id = ANY($1)`

	if _, err := executor.ExecContext(ctx, query, pq.Array(playerIDs)); err != nil {
		return fmt.Errorf("failed to increment tournaments won: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) handlePlayerError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" && pqErr.Constraint == "players_email_key" {
			return ErrPlayerEmailConflict
		}
	}
	return err
}
