package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/smashpoint/league-system/models"
)

const (
	claimPlayerID = "player_id"
	claimRole     = "role"
)

func claimsFromContext(ctx context.Context) (jwt.MapClaims, error) {
	claims, ok := ctx.Value(claimsContextKey).(jwt.MapClaims)
	if !ok {
		return nil, errors.New("no token claims in context")
	}
	return claims, nil
}

func PlayerIDFromContext(ctx context.Context) (int, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return 0, err
	}
	raw, ok := claims[claimPlayerID]
	if !ok {
		return 0, fmt.Errorf("missing %q claim", claimPlayerID)
	}
	// encoding/json decodes JWT numbers as float64.
	id, ok := raw.(float64)
	if !ok || id != float64(int(id)) || int(id) <= 0 {
		return 0, fmt.Errorf("invalid %q claim: %v", claimPlayerID, raw)
	}
	return int(id), nil
}

func PlayerRoleFromContext(ctx context.Context) (models.PlayerRole, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	raw, ok := claims[claimRole].(string)
	if !ok {
		return "", fmt.Errorf("missing or invalid %q claim", claimRole)
	}
	role := models.PlayerRole(raw)
	switch role {
	case models.RoleMember, models.RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}
