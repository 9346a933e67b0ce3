package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Factory builds a vehicle of one variant from its persisted form. It must pass
// the document's ID on to the variant constructor.
type Factory func(doc VehicleDoc, opts ...Option) (Vehicle, error)

// Registry maps type tags to factories. Populate it before handing it to anything
// that reconstructs vehicles; it is not safe to Register concurrently with lookups.
type Registry struct {
	factories map[VehicleType]Factory
}

// NewRegistry returns a registry that knows the built-in variants.
func NewRegistry() *Registry {
	r := &Registry{factories: map[VehicleType]Factory{}}
	r.Register(TypeCar, carFromDoc)
	r.Register(TypeSportsCar, sportsCarFromDoc)
	r.Register(TypeTruck, truckFromDoc)
	return r
}

// Register adds or replaces the factory for tag. A zero Registry starts empty.
func (r *Registry) Register(tag VehicleType, f Factory) {
	if r.factories == nil {
		r.factories = map[VehicleType]Factory{}
	}
	r.factories[tag] = f
}

// Types lists the registered tags in sorted order.
func (r *Registry) Types() []VehicleType {
	out := make([]VehicleType, 0, len(r.factories))
	for tag := range r.factories {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reconstruct dispatches on doc.Type, then restores the state no constructor sets:
// the running flag and the maintenance history.
func (r *Registry) Reconstruct(doc VehicleDoc, opts ...Option) (Vehicle, error) {
	if doc.ID == "" {
		return nil, invalid("%s has no id", doc.Type)
	}
	f, ok := r.factories[doc.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, doc.Type)
	}
	v, err := f(doc, opts...)
	if err != nil {
		return nil, err
	}
	history := make([]MaintenanceRecord, 0, len(doc.MaintenanceHistory))
	for _, md := range doc.MaintenanceHistory {
		rec, err := DeserializeMaintenance(md)
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: %w", doc.ID, err)
		}
		history = append(history, rec)
	}
	if err := v.restore(doc.Running, history); err != nil {
		return nil, fmt.Errorf("vehicle %s: %w", doc.ID, err)
	}
	return v, nil
}

// Decode parses one JSON vehicle document and reconstructs it.
func (r *Registry) Decode(raw []byte, opts ...Option) (Vehicle, error) {
	var doc VehicleDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, invalid("malformed vehicle document: %v", err)
	}
	return r.Reconstruct(doc, opts...)
}
