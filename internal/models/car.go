package models

import "fmt"

// DefaultCarTopSpeed is the speed limit of an ordinary car, in km/h.
const DefaultCarTopSpeed = 180

// Car is a passenger vehicle with a fixed number of doors.
type Car struct {
	vehicle
	doors int
}

// NewCar validates its input and builds a stopped car.
func NewCar(make, model string, year, doors int, opts ...Option) (*Car, error) {
	c, err := newCar(make, model, year, doors, DefaultCarTopSpeed, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func newCar(make, model string, year, doors int, topSpeed float64, o options) (Car, error) {
	if doors < 1 {
		return Car{}, invalid("a car needs at least one door, got %d", doors)
	}
	base, err := newVehicle(make, model, year, topSpeed, o)
	if err != nil {
		return Car{}, err
	}
	return Car{vehicle: base, doors: doors}, nil
}

func (c *Car) Type() VehicleType { return TypeCar }

// Doors returns the number of doors.
func (c *Car) Doors() int { return c.doors }

func (c *Car) Describe() string {
	return c.describe()
}

func (c *Car) describe() string {
	return fmt.Sprintf("%s with %d doors", c.vehicle.describe(), c.doors)
}

func (c *Car) Serialize() VehicleDoc {
	return c.document(TypeCar)
}

func (c *Car) document(tag VehicleType) VehicleDoc {
	doc := c.vehicle.document(tag)
	doors := c.doors
	doc.Doors = &doors
	return doc
}

func carFromDoc(doc VehicleDoc, opts ...Option) (Vehicle, error) {
	if doc.Doors == nil {
		return nil, invalid("car %s has no door count", doc.ID)
	}
	return NewCar(doc.Make, doc.Model, doc.Year, *doc.Doors, append(opts, WithID(doc.ID))...)
}
