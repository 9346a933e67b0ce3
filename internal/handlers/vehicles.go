package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/ukydev/garage/internal/garage"
	"github.com/ukydev/garage/internal/models"
)

// GarageHandler serves the vehicle and maintenance API.
type GarageHandler struct {
	garage *garage.Garage
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewGarageHandler creates a handler backed by g.
func NewGarageHandler(g *garage.Garage, log logrus.FieldLogger) *GarageHandler {
	return &GarageHandler{garage: g, log: log, now: time.Now}
}

// CreateVehicleRequest is the body of POST /api/vehicles.
type CreateVehicleRequest struct {
	Type          models.VehicleType `json:"type"`
	ID            string             `json:"id,omitempty"`
	Make          string             `json:"make"`
	Model         string             `json:"model"`
	Year          int                `json:"year"`
	Doors         int                `json:"doors,omitempty"`
	TopSpeed      float64            `json:"topSpeed,omitempty"`
	CargoCapacity float64            `json:"cargoCapacity,omitempty"`
}

// AmountRequest is the body of accelerate, brake, load and unload.
type AmountRequest struct {
	Amount float64 `json:"amount"`
}

// CreateMaintenanceRequest is the body of POST /api/vehicles/{id}/maintenance.
type CreateMaintenanceRequest struct {
	ID          string   `json:"id,omitempty"`
	Date        string   `json:"date"`
	ServiceType string   `json:"type"`
	Cost        *float64 `json:"cost"`
	Description string   `json:"description"`
}

// VehicleResponse adds live state to the persisted document.
type VehicleResponse struct {
	models.VehicleDoc
	Speed             float64 `json:"speed"`
	EffectiveTopSpeed float64 `json:"effectiveTopSpeed"`
	BoostActive       *bool   `json:"boostActive,omitempty"`
	Description       string  `json:"description"`
}

// ActionResponse reports what a vehicle action did.
type ActionResponse struct {
	Result  models.Result   `json:"result"`
	Outcome string          `json:"outcome"`
	Vehicle VehicleResponse `json:"vehicle"`
}

// MaintenanceResponse is one record with its formatted line.
type MaintenanceResponse struct {
	models.MaintenanceDoc
	Scheduled bool   `json:"scheduled"`
	Formatted string `json:"formatted"`
}

// GarageResponse describes the garage as a whole.
type GarageResponse struct {
	Name             string            `json:"name"`
	Vehicles         []VehicleResponse `json:"vehicles"`
	LastPersistError string            `json:"lastPersistError,omitempty"`
}

func newVehicleResponse(v models.Vehicle) VehicleResponse {
	resp := VehicleResponse{
		VehicleDoc:        v.Serialize(),
		Speed:             v.Speed(),
		EffectiveTopSpeed: v.TopSpeed(),
		Description:       v.Describe(),
	}
	if sc, ok := v.(*models.SportsCar); ok {
		boost := sc.BoostActive()
		resp.BoostActive = &boost
	}
	return resp
}

func (h *GarageHandler) newMaintenanceResponses(records []models.MaintenanceRecord, tag language.Tag) []MaintenanceResponse {
	now := h.now()
	out := make([]MaintenanceResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, MaintenanceResponse{
			MaintenanceDoc: rec.Serialize(),
			Scheduled:      rec.Scheduled(now),
			Formatted:      rec.FormatLocale(tag, now),
		})
	}
	return out
}

// locale picks the formatting language from ?locale= or Accept-Language.
func locale(r *http.Request) language.Tag {
	if q := r.URL.Query().Get("locale"); q != "" {
		if tag, err := language.Parse(q); err == nil {
			return tag
		}
	}
	if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(tags) > 0 {
		return tags[0]
	}
	return models.DefaultLocale
}

// GetGarage lists every vehicle with its live state.
func (h *GarageHandler) GetGarage(w http.ResponseWriter, r *http.Request) {
	resp := GarageResponse{Name: h.garage.Name(), Vehicles: []VehicleResponse{}}
	for _, v := range h.garage.List() {
		_ = h.garage.View(v.ID(), func(v models.Vehicle) {
			resp.Vehicles = append(resp.Vehicles, newVehicleResponse(v))
		})
	}
	if err := h.garage.LastPersistError(); err != nil {
		resp.LastPersistError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearGarage removes every vehicle.
func (h *GarageHandler) ClearGarage(w http.ResponseWriter, r *http.Request) {
	if err := h.garage.Clear(r.Context()); err != nil {
		h.log.WithError(err).Error("Failed to clear garage")
		http.Error(w, "Failed to clear storage", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateVehicle builds a vehicle of the requested type and adds it.
func (h *GarageHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req CreateVehicleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	v, err := buildVehicle(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.garage.Add(r.Context(), v); err != nil {
		writeError(w, err)
		return
	}
	var resp VehicleResponse
	_ = h.garage.View(v.ID(), func(v models.Vehicle) { resp = newVehicleResponse(v) })
	writeJSON(w, http.StatusCreated, resp)
}

func buildVehicle(req CreateVehicleRequest) (models.Vehicle, error) {
	opts := []models.Option{models.WithID(req.ID)}
	switch models.VehicleType(strings.TrimSpace(string(req.Type))) {
	case models.TypeCar:
		return models.NewCar(req.Make, req.Model, req.Year, req.Doors, opts...)
	case models.TypeSportsCar:
		return models.NewSportsCar(req.Make, req.Model, req.Year, req.Doors, req.TopSpeed, opts...)
	case models.TypeTruck:
		return models.NewTruck(req.Make, req.Model, req.Year, req.CargoCapacity, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownType, req.Type)
	}
}

// GetVehicle returns one vehicle.
func (h *GarageHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	var resp VehicleResponse
	if err := h.garage.View(r.PathValue("id"), func(v models.Vehicle) { resp = newVehicleResponse(v) }); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteVehicle removes one vehicle.
func (h *GarageHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if !h.garage.Remove(r.Context(), r.PathValue("id")) {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Action names accepted under POST /api/vehicles/{id}/.
var Actions = []string{"start", "stop", "accelerate", "brake", "boost", "unboost", "load", "unload"}

// VehicleAction returns the handler for one action name.
func (h *GarageHandler) VehicleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var amount float64
		if needsAmount(action) {
			var req AmountRequest
			if err := decodeBody(r, &req); err != nil {
				writeError(w, err)
				return
			}
			amount = req.Amount
		}

		var resp ActionResponse
		err := h.garage.Apply(r.Context(), r.PathValue("id"), func(v models.Vehicle) error {
			res, err := perform(v, action, amount)
			if err != nil {
				return err
			}
			resp = ActionResponse{Result: res, Outcome: res.Outcome.String(), Vehicle: newVehicleResponse(v)}
			if res.Outcome == models.Unchanged || res.Outcome == models.Rejected {
				return garage.ErrUnchanged
			}
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func needsAmount(action string) bool {
	switch action {
	case "accelerate", "brake", "load", "unload":
		return true
	}
	return false
}

func perform(v models.Vehicle, action string, amount float64) (models.Result, error) {
	switch action {
	case "start":
		return v.Start(), nil
	case "stop":
		return v.Stop(), nil
	case "accelerate":
		return v.Accelerate(amount), nil
	case "brake":
		return v.Brake(amount), nil
	case "boost", "unboost":
		sc, ok := v.(*models.SportsCar)
		if !ok {
			return models.Result{}, fmt.Errorf("%w: only sports cars have a boost", models.ErrValidation)
		}
		if action == "boost" {
			return sc.ActivateBoost(), nil
		}
		return sc.DeactivateBoost(), nil
	case "load", "unload":
		t, ok := v.(*models.Truck)
		if !ok {
			return models.Result{}, fmt.Errorf("%w: only trucks carry cargo", models.ErrValidation)
		}
		var err error
		if action == "load" {
			err = t.LoadCargo(amount)
		} else {
			err = t.UnloadCargo(amount)
		}
		if err != nil {
			return models.Result{}, err
		}
		return models.Result{
			Outcome: models.Changed,
			Message: fmt.Sprintf("%s %s carries %.2f of %.2f t.", t.Make(), t.Model(), t.CurrentLoad(), t.CargoCapacity()),
			Speed:   t.Speed(),
		}, nil
	default:
		return models.Result{}, fmt.Errorf("%w: unknown action %q", models.ErrValidation, action)
	}
}

// ListMaintenance returns a vehicle's history, newest first.
func (h *GarageHandler) ListMaintenance(w http.ResponseWriter, r *http.Request) {
	records, err := h.garage.MaintenanceHistory(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newMaintenanceResponses(records, locale(r)))
}

// ListAllMaintenance returns the history of the whole garage, newest first.
func (h *GarageHandler) ListAllMaintenance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.newMaintenanceResponses(h.garage.AllMaintenance(), locale(r)))
}

// CreateMaintenance logs a service for a vehicle.
func (h *GarageHandler) CreateMaintenance(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.PathValue("id")
	var req CreateMaintenanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Cost == nil {
		writeError(w, fmt.Errorf("%w: cost is required", models.ErrValidation))
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := models.NewMaintenanceRecord(vehicleID, date, req.ServiceType, *req.Cost, req.Description, models.WithID(req.ID))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.garage.AddMaintenanceRecord(r.Context(), vehicleID, rec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.newMaintenanceResponses([]models.MaintenanceRecord{rec}, locale(r))[0])
}

// DeleteMaintenance removes one record from a vehicle's history.
func (h *GarageHandler) DeleteMaintenance(w http.ResponseWriter, r *http.Request) {
	if err := h.garage.RemoveMaintenanceRecord(r.Context(), r.PathValue("id"), r.PathValue("recordId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
