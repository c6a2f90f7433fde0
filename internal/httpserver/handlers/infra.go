package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/coursebots/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool   `json:"ok"`
	Mode       string `json:"mode,omitempty"`
	BotsLive   *int   `json:"bots_live,omitempty"`
	BotsStored *int   `json:"bots_stored,omitempty"`
	LastReload string `json:"last_reload,omitempty"`
	Error      string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of the store, the bot registry and the bots file.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store":    checkStore(r, d),
			"bots":     checkBots(r, d),
			"botsfile": checkBotsFile(d),
		}
		writeJSON(w, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func determineStatus(components map[string]componentStatus) string {
	// Without a store no bot works
	if s, ok := components["store"]; ok && !s.OK {
		return "critical"
	}
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "operational"
}

func checkStore(r *http.Request, d deps.Deps) componentStatus {
	if err := pingStore(r.Context(), d.Store); err != nil {
		return componentStatus{OK: false, Mode: d.StoreKind, Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.StoreKind}
}

func checkBots(r *http.Request, d deps.Deps) componentStatus {
	if d.Bots == nil {
		return componentStatus{OK: false, Error: "registry not initialized"}
	}
	names, err := d.Bots.Bots(r.Context(), nil)
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	live, stored := d.Bots.Live(), len(names)
	return componentStatus{OK: live == stored, BotsLive: &live, BotsStored: &stored}
}

func checkBotsFile(d deps.Deps) componentStatus {
	if d.BotsFile == "" || d.LastReload == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}
	last := d.LastReload()
	if last.IsZero() {
		return componentStatus{OK: false, Mode: "file", LastReload: "never"}
	}
	return componentStatus{OK: true, Mode: "file", LastReload: last.Format("2006-01-02 15:04:05")}
}
