package handlers

import "net/http"

// Health reports readiness. Missing vendor credentials degrade the service
// (augmentation refuses to start) without taking it down.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	if a.Vendor == nil || !a.Vendor.HasCredentials() {
		status = "degraded"
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "status": status})
}
