package handlers

import (
	"net/http"

	"github.com/ukydev/garage/internal/middleware"
	"github.com/ukydev/garage/internal/models"
)

// Register mounts the API on mux. Every garage route is authenticated and
// checked against one permission.
func Register(mux *http.ServeMux, gh *GarageHandler, ah *AuthHandler, am *middleware.AuthMiddleware) {
	mux.HandleFunc("POST /api/auth/login", ah.Login)
	mux.Handle("GET /api/auth/me", am.Authenticate(http.HandlerFunc(ah.GetProfile)))

	mux.Handle("GET /api/garage", am.Protect(models.PermViewVehicles, gh.GetGarage))
	mux.Handle("DELETE /api/garage", am.Protect(models.PermManageVehicles, gh.ClearGarage))

	mux.Handle("GET /api/vehicles", am.Protect(models.PermViewVehicles, gh.GetGarage))
	mux.Handle("POST /api/vehicles", am.Protect(models.PermManageVehicles, gh.CreateVehicle))
	mux.Handle("GET /api/vehicles/{id}", am.Protect(models.PermViewVehicles, gh.GetVehicle))
	mux.Handle("DELETE /api/vehicles/{id}", am.Protect(models.PermManageVehicles, gh.DeleteVehicle))
	for _, action := range Actions {
		mux.Handle("POST /api/vehicles/{id}/"+action, am.Protect(models.PermDriveVehicles, gh.VehicleAction(action)))
	}

	mux.Handle("GET /api/maintenance", am.Protect(models.PermViewVehicles, gh.ListAllMaintenance))
	mux.Handle("GET /api/vehicles/{id}/maintenance", am.Protect(models.PermViewVehicles, gh.ListMaintenance))
	mux.Handle("POST /api/vehicles/{id}/maintenance", am.Protect(models.PermLogMaintenance, gh.CreateMaintenance))
	mux.Handle("DELETE /api/vehicles/{id}/maintenance/{recordId}", am.Protect(models.PermLogMaintenance, gh.DeleteMaintenance))
}
