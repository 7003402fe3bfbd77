package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/smashpoint/league-system/handlers"
	"github.com/smashpoint/league-system/middleware"
	"github.com/smashpoint/league-system/models"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Player     *handlers.PlayerHandler
	Tournament *handlers.TournamentHandler
	Match      *handlers.MatchHandler
	Challenge  *handlers.ChallengeHandler
	Stats      *handlers.StatsHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, jwtSecret []byte) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticated := middleware.Authenticate(jwtSecret)
	adminOnly := middleware.Authorize(models.RoleAdmin)

	router.Post("/auth/register", h.Auth.Register)
	router.Post("/auth/login", h.Auth.Login)

	router.Route("/players", func(r chi.Router) {
		r.Get("/", h.Player.List)
		r.Get("/{id}", h.Player.GetProfile)
		r.Get("/{id}/matches", h.Match.PlayerHistory)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Patch("/{id}", h.Player.UpdateProfile)
			r.Post("/{id}/avatar", h.Player.UploadAvatar)

			r.With(adminOnly).Put("/{id}/role", h.Player.UpdateRole)
		})
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.Tournament.List)
		r.Get("/{id}", h.Tournament.Get)
		r.Get("/{id}/full", h.Tournament.GetFull)
		r.Get("/{id}/standings", h.Tournament.Standings)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Post("/{id}/enroll", h.Tournament.Enroll)
			r.Delete("/{id}/enrollments/{enrollmentID}", h.Tournament.Withdraw)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.Post("/", h.Tournament.Create)
				r.Put("/{id}", h.Tournament.Update)
				r.Delete("/{id}", h.Tournament.Delete)
				r.Post("/{id}/open-enrollment", h.Tournament.OpenEnrollment)
				r.Post("/{id}/cancel", h.Tournament.Cancel)
				r.Post("/{id}/start", h.Tournament.Start)
				r.Post("/{id}/swiss/next-round", h.Tournament.GenerateNextSwissRound)
				r.Post("/{id}/knockout", h.Tournament.GenerateKnockoutStage)
				r.Post("/{id}/next-match", h.Match.SetNextMatch)
				r.Put("/{id}/enrollments/{enrollmentID}/seed", h.Tournament.SetSeed)
			})
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{id}", h.Match.Get)
		r.Get("/{id}/best-of", h.Match.GetEffectiveBestOf)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Use(adminOnly)

			r.Post("/{id}/result", h.Match.RecordResult)
			r.Post("/{id}/quick-result", h.Match.RecordQuickResult)
			r.Post("/{id}/walkover", h.Match.RecordWalkover)
			r.Put("/{id}/best-of", h.Match.SetBestOf)
			r.Post("/{id}/in-progress", h.Match.MarkInProgress)
		})
	})

	router.Route("/challenges", func(r chi.Router) {
		r.Get("/invite", h.Challenge.GetByToken)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Post("/", h.Challenge.Create)
			r.Get("/", h.Challenge.ListMine)
			r.Post("/{id}/accept", h.Challenge.Accept)
			r.Post("/{id}/decline", h.Challenge.Decline)
			r.Post("/{id}/result", h.Challenge.Complete)
		})
	})

	router.Get("/stats", h.Stats.ClubStats)
	router.Get("/leaderboard", h.Stats.Leaderboard)

	router.Get("/ws/tournaments/{id}", h.WebSocket.ServeWs)

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/openapi.json"),
	))
	router.Get("/docs/openapi.json", handlers.ServeOpenAPI)

	return router
}
