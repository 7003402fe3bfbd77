package services

import "errors"

// Shared errors used across services and the HTTP mapping. Handlers
// translate these families to status codes: validation -> 400, state
// and concurrency -> 409, not found -> 404.
var (
	// Not found
	ErrNotFound           = errors.New("requested resource not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrChallengeNotFound  = errors.New("challenge not found")

	// Validation and business rules
	ErrValidationFailed       = errors.New("validation failed")
	ErrPasswordTooShort       = errors.New("password is too short")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrTournamentNameRequired = errors.New("tournament name is required")
	ErrInvalidFormat          = errors.New("unknown tournament format")
	ErrInvalidArity           = errors.New("unknown match arity")
	ErrInvalidMultiplier      = errors.New("multiplier must be a positive percentage")
	ErrInvalidBestOf          = errors.New("best-of must be 1, 3, 5 or 7")
	ErrInvalidScore           = errors.New("invalid score")
	ErrInvalidWinnerSide      = errors.New("winner side must be 1 or 2")
	ErrPartnerRequired        = errors.New("doubles play requires a partner")
	ErrPartnerNotAllowed      = errors.New("singles play does not take a partner")
	ErrPartnerIsPlayer        = errors.New("partner must be a different player")
	ErrSelfChallenge          = errors.New("cannot challenge yourself")
	ErrNotEnoughPlayers       = errors.New("not enough enrolled players")

	// State rules
	ErrTournamentNotDraft      = errors.New("tournament is no longer a draft")
	ErrEnrollmentNotOpen       = errors.New("tournament enrollment is not open")
	ErrTournamentNotStartable  = errors.New("tournament cannot start from its current status")
	ErrTournamentNotInProgress = errors.New("tournament is not in progress")
	ErrTournamentNotCancelable = errors.New("tournament cannot be cancelled from its current status")
	ErrTournamentNotDeletable  = errors.New("only draft or cancelled tournaments can be deleted")
	ErrMatchNotReady           = errors.New("match is not ready for a result")
	ErrMatchAlreadyDecided     = errors.New("match already has a result")
	ErrMatchBestOfLocked       = errors.New("best-of cannot change on a decided match")
	ErrRoundNotComplete        = errors.New("current round still has unplayed matches")
	ErrSwissRoundsExhausted    = errors.New("all swiss rounds have been played")
	ErrGroupStageNotComplete   = errors.New("group stage still has unplayed matches")
	ErrKnockoutAlreadyExists   = errors.New("knockout stage already generated")
	ErrChallengeNotPending     = errors.New("challenge is not pending")
	ErrChallengeNotAccepted    = errors.New("challenge is not accepted")
	ErrChallengeExpired        = errors.New("challenge has expired")

	// Concurrency
	ErrConcurrentUpdate = errors.New("lost a concurrent update, reload and retry")

	// Conflicts
	ErrEmailConflict          = errors.New("email address is already in use")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrAlreadyEnrolled        = errors.New("player is already enrolled in this tournament")

	// Authentication and authorization
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
)
