package models

import (
	"fmt"
	"math"
)

// DefaultTruckTopSpeed is the speed limit of a truck, in km/h.
const DefaultTruckTopSpeed = 120

// Truck carries cargo up to a fixed capacity, in tonnes.
type Truck struct {
	vehicle
	capacity float64
	load     float64
}

// NewTruck validates its input and builds an empty, stopped truck.
func NewTruck(make, model string, year int, cargoCapacity float64, opts ...Option) (*Truck, error) {
	if math.IsNaN(cargoCapacity) || math.IsInf(cargoCapacity, 0) || cargoCapacity < 0 {
		return nil, invalid("cargo capacity must be a non-negative number, got %v", cargoCapacity)
	}
	base, err := newVehicle(make, model, year, DefaultTruckTopSpeed, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Truck{vehicle: base, capacity: cargoCapacity}, nil
}

func (t *Truck) Type() VehicleType { return TypeTruck }

// CargoCapacity returns the maximum load in tonnes.
func (t *Truck) CargoCapacity() float64 { return t.capacity }

// CurrentLoad returns the load on board in tonnes.
func (t *Truck) CurrentLoad() float64 { return t.load }

// cargoTolerance absorbs float rounding when a load lands on a bound.
const cargoTolerance = 1e-9

// LoadCargo adds amount tonnes. The truck is left untouched on error.
func (t *Truck) LoadCargo(amount float64) error {
	if !validPositive(amount) {
		return invalid("cargo amount must be a positive number, got %v", amount)
	}
	next := t.load + amount
	if next > t.capacity+cargoTolerance {
		return invalid("loading %.2f t onto %s would exceed its capacity of %.2f t (current load %.2f t)",
			amount, t.name(), t.capacity, t.load)
	}
	if next > t.capacity-cargoTolerance {
		next = t.capacity
	}
	t.load = next
	return nil
}

// UnloadCargo removes amount tonnes. The truck is left untouched on error.
func (t *Truck) UnloadCargo(amount float64) error {
	if !validPositive(amount) {
		return invalid("cargo amount must be a positive number, got %v", amount)
	}
	if amount > t.load+cargoTolerance {
		return invalid("cannot unload %.2f t from %s, only %.2f t on board", amount, t.name(), t.load)
	}
	next := t.load - amount
	if next < cargoTolerance {
		next = 0
	}
	t.load = next
	return nil
}

func (t *Truck) Describe() string {
	return fmt.Sprintf("%s, cargo: %.2f/%.2f t", t.describe(), t.load, t.capacity)
}

func (t *Truck) Serialize() VehicleDoc {
	doc := t.document(TypeTruck)
	capacity, load := t.capacity, t.load
	doc.CargoCapacity = &capacity
	doc.CurrentLoad = &load
	return doc
}

func truckFromDoc(doc VehicleDoc, opts ...Option) (Vehicle, error) {
	if doc.CargoCapacity == nil {
		return nil, invalid("truck %s has no cargo capacity", doc.ID)
	}
	t, err := NewTruck(doc.Make, doc.Model, doc.Year, *doc.CargoCapacity, append(opts, WithID(doc.ID))...)
	if err != nil {
		return nil, err
	}
	if doc.CurrentLoad != nil && *doc.CurrentLoad != 0 {
		if err := t.LoadCargo(*doc.CurrentLoad); err != nil {
			return nil, err
		}
	}
	return t, nil
}
