package services

import "context"

// Event names pushed to websocket subscribers of a tournament room.
const (
	EventTournamentStarted   = "tournament.started"
	EventTournamentCompleted = "tournament.completed"
	EventEnrollmentChanged   = "enrollment.changed"
	EventRoundGenerated      = "round.generated"
	EventMatchCompleted      = "match.completed"
	EventMatchFeatured       = "match.featured"
)

// Event is what services hand to the live layer. Payload must be JSON
// marshalable.
type Event struct {
	Type         string      `json:"type"`
	TournamentID int         `json:"tournament_id"`
	Payload      interface{} `json:"payload,omitempty"`
}

// Notifier delivers events to connected clients. Publishing happens
// after the owning transaction commits and must never block or fail the
// operation, so the interface has no error return.
type Notifier interface {
	Publish(event Event)
}

// AchievementSink receives post-commit hooks so badge evaluation can run
// off the request path. Implementations swallow their own errors.
type AchievementSink interface {
	PlayerStatsChanged(ctx context.Context, playerIDs []int)
	TournamentCompleted(ctx context.Context, tournamentID int, winnerPlayerIDs []int)
}

// NopNotifier satisfies Notifier for tests and tooling.
type NopNotifier struct{}

func (NopNotifier) Publish(Event) {}

// NopAchievementSink satisfies AchievementSink for tests and tooling.
type NopAchievementSink struct{}

func (NopAchievementSink) PlayerStatsChanged(context.Context, []int) {}

func (NopAchievementSink) TournamentCompleted(context.Context, int, []int) {}
