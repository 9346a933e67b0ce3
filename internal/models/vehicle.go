package models

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// VehicleType is the tag stored with every persisted vehicle.
type VehicleType string

const (
	TypeCar       VehicleType = "Car"
	TypeSportsCar VehicleType = "SportsCar"
	TypeTruck     VehicleType = "Truck"
)

// MinYear is the year of the first production automobile.
const MinYear = 1886

// Outcome classifies what a state-changing call did.
type Outcome int

const (
	Changed   Outcome = iota // state moved
	Unchanged                // redundant call, nothing to do
	Limited                  // moved, but clamped at a bound
	Rejected                 // precondition failed
)

func (o Outcome) String() string {
	switch o {
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	case Limited:
		return "limited"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is returned by engine and speed operations.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Speed   float64 `json:"speed"`
}

// Vehicle is implemented by every variant in this package. The unexported method
// keeps the set of implementations closed so reconstruction can restore state.
type Vehicle interface {
	ID() string
	Type() VehicleType
	Make() string
	Model() string
	Year() int
	Running() bool
	Speed() float64
	TopSpeed() float64

	Start() Result
	Stop() Result
	Accelerate(delta float64) Result
	Brake(delta float64) Result

	AddMaintenanceRecord(rec MaintenanceRecord) error
	RemoveMaintenanceRecord(recordID string) bool
	MaintenanceHistory() []MaintenanceRecord

	Describe() string
	Serialize() VehicleDoc

	restore(running bool, history []MaintenanceRecord) error
}

// VehicleDoc is the flat persisted form of any vehicle. Variant fields are pointers
// so absent values are told apart from zero values.
type VehicleDoc struct {
	Type               VehicleType      `json:"type"`
	ID                 string           `json:"id"`
	Make               string           `json:"make"`
	Model              string           `json:"model"`
	Year               int              `json:"year"`
	Running            bool             `json:"running"`
	Doors              *int             `json:"doors,omitempty"`
	TopSpeed           *float64         `json:"topSpeed,omitempty"`
	CargoCapacity      *float64         `json:"cargoCapacity,omitempty"`
	CurrentLoad        *float64         `json:"currentLoad,omitempty"`
	MaintenanceHistory []MaintenanceDoc `json:"maintenanceHistory"`
}

// vehicle holds the state shared by all variants.
type vehicle struct {
	id      string
	make    string
	model   string
	year    int
	running bool
	speed   float64
	limit   float64 // effective top speed in km/h
	history []MaintenanceRecord
}

func newVehicle(make, model string, year int, topSpeed float64, o options) (vehicle, error) {
	make = strings.TrimSpace(make)
	model = strings.TrimSpace(model)
	if make == "" {
		return vehicle{}, invalid("make is required")
	}
	if model == "" {
		return vehicle{}, invalid("model is required")
	}
	maxYear := o.now().Year() + 2
	if year < MinYear || year > maxYear {
		return vehicle{}, invalid("year %d must be between %d and %d", year, MinYear, maxYear)
	}
	id := strings.TrimSpace(o.id)
	if id == "" {
		id = uuid.NewString()
	}
	return vehicle{
		id:      id,
		make:    make,
		model:   model,
		year:    year,
		limit:   topSpeed,
		history: []MaintenanceRecord{},
	}, nil
}

func (v *vehicle) ID() string { return v.id }
func (v *vehicle) Make() string { return v.make }
func (v *vehicle) Model() string { return v.model }
func (v *vehicle) Year() int { return v.year }
func (v *vehicle) Running() bool { return v.running }
func (v *vehicle) Speed() float64 { return v.speed }
func (v *vehicle) TopSpeed() float64 { return v.limit }
func (v *vehicle) name() string { return v.make + " " + v.model }

func (v *vehicle) result(o Outcome, format string, args ...interface{}) Result {
	return Result{Outcome: o, Message: fmt.Sprintf(format, args...), Speed: v.speed}
}

// Start turns the engine on. Calling it on a running vehicle changes nothing.
func (v *vehicle) Start() Result {
	if v.running {
		return v.result(Unchanged, "%s is already running.", v.name())
	}
	v.running = true
	return v.result(Changed, "%s started.", v.name())
}

// Stop turns the engine off and brings the vehicle to a halt.
func (v *vehicle) Stop() Result {
	if !v.running {
		return v.result(Unchanged, "%s is already stopped.", v.name())
	}
	v.running = false
	v.speed = 0
	return v.result(Changed, "%s stopped.", v.name())
}

// Accelerate raises the speed by delta km/h, never past the effective top speed.
func (v *vehicle) Accelerate(delta float64) Result {
	if !v.running {
		return v.result(Rejected, "%s must be started before accelerating.", v.name())
	}
	if !(delta > 0) {
		return v.result(Rejected, "acceleration must be a positive amount.")
	}
	target := v.speed + delta
	if target > v.limit {
		v.speed = v.limit
		return v.result(Limited, "%s reached its top speed of %.0f km/h.", v.name(), v.limit)
	}
	v.speed = target
	return v.result(Changed, "%s accelerated to %.0f km/h.", v.name(), v.speed)
}

// Brake lowers the speed by delta km/h, never below zero.
func (v *vehicle) Brake(delta float64) Result {
	if !v.running {
		return v.result(Rejected, "%s must be started before braking.", v.name())
	}
	if !(delta > 0) {
		return v.result(Rejected, "braking must be a positive amount.")
	}
	target := v.speed - delta
	if target < 0 {
		v.speed = 0
		return v.result(Limited, "%s came to a full stop.", v.name())
	}
	v.speed = target
	return v.result(Changed, "%s slowed down to %.0f km/h.", v.name(), v.speed)
}

// AddMaintenanceRecord appends a record that belongs to this vehicle and keeps the
// history ordered newest first.
func (v *vehicle) AddMaintenanceRecord(rec MaintenanceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.VehicleID != v.id {
		return invalid("maintenance record %s belongs to vehicle %q, not %q", rec.ID, rec.VehicleID, v.id)
	}
	for _, existing := range v.history {
		if existing.ID == rec.ID {
			return invalid("maintenance record %s already exists", rec.ID)
		}
	}
	v.history = append(v.history, rec)
	slices.SortStableFunc(v.history, func(a, b MaintenanceRecord) int {
		return b.Date.Compare(a.Date)
	})
	return nil
}

// RemoveMaintenanceRecord drops a record by id and reports whether it existed.
func (v *vehicle) RemoveMaintenanceRecord(recordID string) bool {
	for i, rec := range v.history {
		if rec.ID == recordID {
			v.history = slices.Delete(v.history, i, i+1)
			return true
		}
	}
	return false
}

// MaintenanceHistory returns a copy of the history, newest first.
func (v *vehicle) MaintenanceHistory() []MaintenanceRecord {
	return slices.Clone(v.history)
}

func (v *vehicle) describe() string {
	return fmt.Sprintf("Vehicle: %s %s (%d)", v.make, v.model, v.year)
}

// document fills the fields common to every variant. Variants add their own.
func (v *vehicle) document(tag VehicleType) VehicleDoc {
	history := make([]MaintenanceDoc, 0, len(v.history))
	for _, rec := range v.history {
		history = append(history, rec.Serialize())
	}
	return VehicleDoc{
		Type:               tag,
		ID:                 v.id,
		Make:               v.make,
		Model:              v.model,
		Year:               v.year,
		Running:            v.running,
		MaintenanceHistory: history,
	}
}

func (v *vehicle) restore(running bool, history []MaintenanceRecord) error {
	v.running = running
	v.history = []MaintenanceRecord{}
	for _, rec := range history {
		if err := v.AddMaintenanceRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func validPositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0)
}
