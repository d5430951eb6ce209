package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/infra"
	"server/internal/orchestrator"
	"server/internal/providers/kling"
	"server/internal/providers/trainer"
	"server/internal/statusstore"
)

// App carries the shared dependencies for all HTTP handlers.
type App struct {
	Cfg     *infra.Config
	Logger  infra.Logger
	Vendor  *kling.Client
	Batch   *orchestrator.Batch
	Store   statusstore.Store
	Trainer *trainer.Client
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"ok":      false,
		"code":    code,
		"message": message,
	})
}
