package models

import "fmt"

// BoostFactor multiplies a sports car's top speed while boost is active.
const BoostFactor = 1.25

// SportsCar is a car with a configurable top speed and a boost mode.
type SportsCar struct {
	Car
	topSpeed float64
	boost    bool
}

// NewSportsCar validates its input and builds a stopped sports car.
func NewSportsCar(make, model string, year, doors int, topSpeed float64, opts ...Option) (*SportsCar, error) {
	if !validPositive(topSpeed) {
		return nil, invalid("top speed must be a positive number, got %v", topSpeed)
	}
	car, err := newCar(make, model, year, doors, topSpeed, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &SportsCar{Car: car, topSpeed: topSpeed}, nil
}

func (s *SportsCar) Type() VehicleType { return TypeSportsCar }

// RatedTopSpeed is the top speed without boost.
func (s *SportsCar) RatedTopSpeed() float64 { return s.topSpeed }

// BoostActive reports whether boost is engaged.
func (s *SportsCar) BoostActive() bool { return s.boost }

// ActivateBoost raises the effective top speed. The engine must be running.
func (s *SportsCar) ActivateBoost() Result {
	if !s.running {
		return s.result(Rejected, "%s must be started before activating boost.", s.name())
	}
	if s.boost {
		return s.result(Unchanged, "%s already has boost active.", s.name())
	}
	s.boost = true
	s.limit = s.topSpeed * BoostFactor
	return s.result(Changed, "%s activated boost! Top speed is now %.0f km/h.", s.name(), s.limit)
}

// DeactivateBoost restores the rated top speed, slowing down if needed.
func (s *SportsCar) DeactivateBoost() Result {
	if !s.boost {
		return s.result(Unchanged, "%s has no boost active.", s.name())
	}
	s.boost = false
	s.limit = s.topSpeed
	if s.speed > s.limit {
		s.speed = s.limit
	}
	return s.result(Changed, "%s deactivated boost.", s.name())
}

// Stop turns the engine off; boost cannot outlive the engine.
func (s *SportsCar) Stop() Result {
	if s.boost {
		s.DeactivateBoost()
	}
	return s.Car.Stop()
}

func (s *SportsCar) Describe() string {
	return fmt.Sprintf("%s, top speed: %.0f km/h", s.Car.describe(), s.topSpeed)
}

func (s *SportsCar) Serialize() VehicleDoc {
	doc := s.Car.document(TypeSportsCar)
	topSpeed := s.topSpeed
	doc.TopSpeed = &topSpeed
	return doc
}

func sportsCarFromDoc(doc VehicleDoc, opts ...Option) (Vehicle, error) {
	if doc.Doors == nil {
		return nil, invalid("sports car %s has no door count", doc.ID)
	}
	if doc.TopSpeed == nil {
		return nil, invalid("sports car %s has no top speed", doc.ID)
	}
	return NewSportsCar(doc.Make, doc.Model, doc.Year, *doc.Doors, *doc.TopSpeed, append(opts, WithID(doc.ID))...)
}
