package web

import (
	"net/http"
	"os"
	"path/filepath"
)

// DefaultDashboardPath is where the live analysis dashboard is looked
// up unless IMGSENTINEL_DASHBOARD overrides it.
var DefaultDashboardPath = filepath.Join("web", "dashboard.html")

// ServeDashboard serves the live analysis dashboard.
func ServeDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	path := DefaultDashboardPath
	if override := os.Getenv("IMGSENTINEL_DASHBOARD"); override != "" {
		path = override
	}
	http.ServeFile(w, r, path)
}
