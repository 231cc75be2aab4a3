package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studycompanion-backend/internal/handlers"
	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/middleware"
	"studycompanion-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	healthHandler *handlers.HealthHandler,
	profileHandler *handlers.ProfileHandler,
	emotionHandler *handlers.EmotionHandler,
	studySessionHandler *handlers.StudySessionHandler,
	quizHandler *handlers.QuizHandler,
	battleHandler *handlers.BattleHandler,
	jobHandler *handlers.JobHandler,
	voiceHandler *handlers.VoiceHandler,
	wsHub *websocket.Hub,
	apiLimiter *middleware.RateLimiter,
	frontendURL string,
	log *logger.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", healthHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket authenticates with the token query param
		r.Get("/ws", wsHub.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(apiLimiter.Middleware)
			r.Use(jwtAuth.Middleware)
			r.Use(chimiddleware.Timeout(60 * time.Second))

			// ──── Learning Profile ────
			r.Get("/profile", profileHandler.Get)
			r.Put("/profile", profileHandler.Update)

			// ──── Emotion ────
			r.Route("/emotion", func(r chi.Router) {
				r.Get("/", emotionHandler.Current)
				r.Post("/detection", emotionHandler.SetDetection)
				r.Get("/recommendations", emotionHandler.Recommendations)
			})

			// ──── Study Session Routes ────
			r.Route("/study-sessions", func(r chi.Router) {
				r.Post("/", studySessionHandler.Start)
				r.Get("/", studySessionHandler.History)
				r.Get("/active", studySessionHandler.Active)
				r.Get("/stats", studySessionHandler.Stats)
				r.Get("/content", studySessionHandler.Content)
				r.Post("/{id}/activities", studySessionHandler.LogActivity)
				r.Post("/{id}/emotions", studySessionHandler.LogEmotion)
				r.Post("/{id}/end", studySessionHandler.End)
			})

			// ──── Quiz Routes ────
			r.Route("/quizzes", func(r chi.Router) {
				r.Post("/", quizHandler.Generate)
				r.Post("/from-content", quizHandler.FromContent)
				r.Get("/current", quizHandler.Current)
				r.Post("/reset", quizHandler.Reset)
				r.Get("/history", quizHandler.History)
				r.Post("/{id}/answers", quizHandler.Answer)
				r.Post("/{id}/finish", quizHandler.Finish)
			})

			// ──── Quiz Battle Routes ────
			r.Route("/battles", func(r chi.Router) {
				r.Post("/", battleHandler.Create)
				r.Get("/", battleHandler.List)
				r.Get("/{id}", battleHandler.Get)
				r.Post("/{id}/join", battleHandler.Join)
				r.Post("/{id}/start", battleHandler.Start)
				r.Post("/{id}/leave", battleHandler.Leave)
				r.Post("/{id}/answers", battleHandler.Answer)
			})

			// ──── Voice ────
			r.Post("/voice/commands", voiceHandler.Command)

			// ──── Job Routes ────
			r.Get("/jobs/{id}", jobHandler.GetJob)
		})
	})

	return r
}
