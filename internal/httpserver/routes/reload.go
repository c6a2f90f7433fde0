package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/coursebots/internal/httpserver/deps"
	"github.com/MrSnakeDoc/coursebots/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/coursebots/internal/httpserver/mw"
)

func init() { Register(registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	guard := mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
	r.With(guard).Post("/reload", handlers.Reload(d))
	r.With(guard).Get("/infra", handlers.Infra(d))
}
