package api

import (
	"encoding/json"
	"hostdesk/syncengine/internal/models/entities"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
)

// HealthCheckHandler handles GET /healthCheck
//
// @Summary Health check
// @Description Verifies the server and its backing stores are reachable.
// @Tags Misc
// @Success 200 {string} string "ok"
// @Router /healthCheck [get]
func HealthCheckHandler(db *sqlx.DB, dataDir string, upSince time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		services := make(map[string]entities.ServiceStatus)

		// Check sqlite
		dbStatus := "ok"
		dbDetails := "SQLite connected"
		if err := db.Ping(); err != nil {
			dbStatus = "down"
			dbDetails = err.Error()
		}
		services["sqlite"] = entities.ServiceStatus{
			Status:  dbStatus,
			Details: dbDetails,
		}

		// Check data directory
		dirStatus := "ok"
		dirDetails := "Data directory readable"
		if info, err := os.Stat(dataDir); err != nil {
			dirStatus = "down"
			dirDetails = err.Error()
		} else if !info.IsDir() {
			dirStatus = "down"
			dirDetails = dataDir + " is not a directory"
		}
		services["data_dir"] = entities.ServiceStatus{
			Status:  dirStatus,
			Details: dirDetails,
		}

		overallStatus := "ok"
		for _, svc := range services {
			if svc.Status != "ok" {
				overallStatus = "down"
				break
			}
		}

		now := time.Now()
		uptime := now.Sub(upSince).Round(time.Second).String()

		resp := entities.HealthCheckResponse{
			Services: services,
			Status:   overallStatus,
			Uptime:   uptime,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
