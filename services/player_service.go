package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smashpoint/league-system/models"
	"github.com/smashpoint/league-system/repositories"
	"github.com/smashpoint/league-system/storage"
)

type PlayerProfile struct {
	Player       models.Player              `json:"player"`
	Achievements []models.PlayerAchievement `json:"achievements"`
}

type UpdateProfileInput struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
}

type PlayerService interface {
	GetProfile(ctx context.Context, id int) (*PlayerProfile, error)
	List(ctx context.Context, filter repositories.PlayerFilter) ([]*models.Player, error)
	UpdateProfile(ctx context.Context, actorID, playerID int, actorRole models.PlayerRole, input UpdateProfileInput) (*models.Player, error)
	UploadAvatar(ctx context.Context, playerID int, contentType string, file io.Reader) (*models.Player, error)
	UpdateRole(ctx context.Context, playerID int, role models.PlayerRole) error
}

type playerService struct {
	playerRepo      repositories.PlayerRepository
	achievementRepo repositories.AchievementRepository
	uploader        storage.FileUploader
}

func NewPlayerService(
	playerRepo repositories.PlayerRepository,
	achievementRepo repositories.AchievementRepository,
	uploader storage.FileUploader,
) PlayerService {
	return &playerService{
		playerRepo:      playerRepo,
		achievementRepo: achievementRepo,
		uploader:        uploader,
	}
}

func (s *playerService) GetProfile(ctx context.Context, id int) (*PlayerProfile, error) {
	player, err := s.playerRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to load player %d: %w", id, err)
	}

	achievements, err := s.achievementRepo.ListByPlayer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements for player %d: %w", id, err)
	}

	s.populateAvatarURL(player)
	player.PasswordHash = ""

	return &PlayerProfile{Player: *player, Achievements: achievements}, nil
}

func (s *playerService) List(ctx context.Context, filter repositories.PlayerFilter) ([]*models.Player, error) {
	players, err := s.playerRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	for _, player := range players {
		s.populateAvatarURL(player)
		player.PasswordHash = ""
	}
	return players, nil
}

func (s *playerService) UpdateProfile(ctx context.Context, actorID, playerID int, actorRole models.PlayerRole, input UpdateProfileInput) (*models.Player, error) {
	if actorID != playerID && actorRole != models.RoleAdmin {
		return nil, ErrForbiddenOperation
	}

	player, err := s.playerRepo.GetByID(ctx, nil, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to load player %d: %w", playerID, err)
	}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", ErrValidationFailed)
		}
		player.Email = email
	}
	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display name cannot be empty", ErrValidationFailed)
		}
		player.DisplayName = name
	}

	if err := s.playerRepo.UpdateProfile(ctx, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerEmailConflict) {
			return nil, ErrEmailConflict
		}
		return nil, fmt.Errorf("failed to update player %d: %w", playerID, err)
	}

	s.populateAvatarURL(player)
	player.PasswordHash = ""
	return player, nil
}

func (s *playerService) UploadAvatar(ctx context.Context, playerID int, contentType string, file io.Reader) (*models.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, nil, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to load player %d: %w", playerID, err)
	}

	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("avatars/%d%s", playerID, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	// A stale object under the previous extension would otherwise linger.
	if player.AvatarKey != nil && *player.AvatarKey != key {
		_ = s.uploader.Delete(ctx, *player.AvatarKey)
	}

	if err := s.playerRepo.UpdateAvatarKey(ctx, playerID, &key); err != nil {
		return nil, fmt.Errorf("failed to store avatar key: %w", err)
	}

	player.AvatarKey = &key
	s.populateAvatarURL(player)
	player.PasswordHash = ""
	return player, nil
}

func (s *playerService) UpdateRole(ctx context.Context, playerID int, role models.PlayerRole) error {
	if role != models.RoleMember && role != models.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", ErrValidationFailed, role)
	}
	if err := s.playerRepo.UpdateRole(ctx, playerID, role); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to update role for player %d: %w", playerID, err)
	}
	return nil
}

func (s *playerService) populateAvatarURL(player *models.Player) {
	if player == nil || player.AvatarKey == nil || *player.AvatarKey == "" || s.uploader == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*player.AvatarKey); url != "" {
		player.AvatarURL = &url
	}
}

func extensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("unsupported avatar content type %q", contentType)
	}
}
