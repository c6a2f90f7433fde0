package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/coursebots/internal/httpserver/deps"
	"github.com/MrSnakeDoc/coursebots/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/coursebots/internal/httpserver/mw"
)

func init() { Register(registerBots) }

func registerBots(r chi.Router, d deps.Deps) {
	r.Route("/api/bots", func(r chi.Router) {
		if d.APIRateLimit > 0 {
			r.Use(mw.RateLimit(mw.RateLimitConfig{
				Burst:      d.APIRateLimit,
				PerMinute:  d.APIRateLimit,
				MaxClients: 10_000,
				IdleTTL:    15 * time.Minute,
				TrustProxy: d.TrustProxy,
			}))
		}

		r.Get("/", handlers.ListBots(d))
		r.Post("/", handlers.CreateBot(d))

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/channels", handlers.BotChannels(d))
			r.Post("/join", handlers.JoinChannel(d))
			r.Post("/part", handlers.PartChannel(d))
			r.Post("/count", handlers.BeginCount(d))
			r.Get("/count", handlers.Count(d))
			r.Put("/triggers/{kind}", handlers.SetTrigger(d))
			r.Post("/surveys", handlers.RunSurvey(d))
			r.Get("/surveys/{id}", handlers.SurveyResults(d))
			r.Get("/stats", handlers.ChannelStats(d))
			r.Get("/seen", handlers.SeenTime(d))
		})
	})
}
