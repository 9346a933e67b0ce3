// Package garage keeps the fleet of vehicles in memory and mirrors it to a
// key-value store after every change.
package garage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ukydev/garage/internal/db"
	"github.com/ukydev/garage/internal/events"
	"github.com/ukydev/garage/internal/metrics"
	"github.com/ukydev/garage/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("vehicle already exists")
	// ErrUnchanged is returned by an Apply callback that left the vehicle as it
	// was. Apply then skips the save and the event and returns nil.
	ErrUnchanged = errors.New("vehicle unchanged")
)

const (
	// VehiclesKey holds the JSON array of vehicle documents.
	VehiclesKey = "vehicles"
	// MetaKey holds the garage name and the time of the last save.
	MetaKey = "garage"
	// DefaultName is used until a name is configured or loaded.
	DefaultName = "My Garage"
)

// Meta is the document stored under MetaKey.
type Meta struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"savedAt"`
}

// Garage is safe for concurrent use. Vehicles handed out by FindByID and List
// are shared with the garage; mutate them through Apply so the change is saved.
type Garage struct {
	mu        sync.RWMutex
	name      string
	nameFixed bool
	vehicles  []models.Vehicle

	store    db.KeyValueStore
	registry *models.Registry
	log      logrus.FieldLogger
	events   events.Publisher
	metrics  *metrics.Metrics
	now      func() time.Time

	lastPersistErr error
}

// Option configures a Garage.
type Option func(*Garage)

// WithName fixes the garage name. A name found in the store does not override it.
func WithName(name string) Option {
	return func(g *Garage) {
		if name = strings.TrimSpace(name); name != "" {
			g.name = name
			g.nameFixed = true
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Garage) {
		if log != nil {
			g.log = log
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(g *Garage) {
		if p != nil {
			g.events = p
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Garage) { g.metrics = m }
}

// WithClock replaces time.Now for save timestamps and year validation on load.
func WithClock(now func() time.Time) Option {
	return func(g *Garage) {
		if now != nil {
			g.now = now
		}
	}
}

// New returns an empty garage. Call Load to read what the store holds.
func New(store db.KeyValueStore, registry *models.Registry, opts ...Option) *Garage {
	g := &Garage{
		name:     DefaultName,
		vehicles: []models.Vehicle{},
		store:    store,
		registry: registry,
		log:      logrus.StandardLogger(),
		events:   events.NopPublisher{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.registry == nil {
		g.registry = models.NewRegistry()
	}
	return g
}

// Name returns the garage name.
func (g *Garage) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

// Len returns the number of vehicles.
func (g *Garage) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vehicles)
}

// Add appends v and saves the garage. A vehicle whose id is already taken is
// rejected with ErrDuplicate and the garage is left as it was.
func (g *Garage) Add(ctx context.Context, v models.Vehicle) error {
	if v == nil {
		return fmt.Errorf("%w: vehicle is required", models.ErrValidation)
	}
	g.mu.Lock()
	if g.indexOf(v.ID()) >= 0 {
		g.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrDuplicate, v.ID())
		g.metrics.RecordOperation("add", err)
		return err
	}
	g.vehicles = append(g.vehicles, v)
	g.persistLocked(ctx)
	detail := v.Describe()
	g.mu.Unlock()

	g.metrics.RecordOperation("add", nil)
	g.log.WithFields(logrus.Fields{
		"vehicle_id": v.ID(),
		"type":       v.Type(),
		"make":       v.Make(),
		"model":      v.Model(),
	}).Info("Added vehicle")
	g.publish(ctx, events.Event{Kind: events.VehicleAdded, VehicleID: v.ID(), Detail: detail})
	return nil
}

// Remove deletes the vehicle with id and reports whether it was there.
func (g *Garage) Remove(ctx context.Context, id string) bool {
	g.mu.Lock()
	i := g.indexOf(id)
	if i < 0 {
		g.mu.Unlock()
		g.metrics.RecordOperation("remove", ErrNotFound)
		return false
	}
	g.vehicles = slices.Delete(g.vehicles, i, i+1)
	g.persistLocked(ctx)
	g.mu.Unlock()

	g.metrics.RecordOperation("remove", nil)
	g.log.WithField("vehicle_id", id).Info("Removed vehicle")
	g.publish(ctx, events.Event{Kind: events.VehicleRemoved, VehicleID: id})
	return true
}

// FindByID returns the vehicle with id.
func (g *Garage) FindByID(id string) (models.Vehicle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i := g.indexOf(id); i >= 0 {
		return g.vehicles[i], true
	}
	return nil, false
}

// List returns a copy of the vehicle list in insertion order.
func (g *Garage) List() []models.Vehicle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.vehicles)
}

// Snapshot serializes every vehicle under the read lock, so the documents are
// consistent with each other.
func (g *Garage) Snapshot() []models.VehicleDoc {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.documents()
}

// View runs fn with the vehicle while holding the read lock.
func (g *Garage) View(id string, fn func(models.Vehicle)) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i := g.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: vehicle %s", ErrNotFound, id)
	}
	fn(g.vehicles[i])
	return nil
}

// Apply runs fn with the vehicle while holding the write lock and saves the
// garage when fn succeeds. fn must leave the vehicle untouched when it fails,
// and returns ErrUnchanged when it succeeded without changing anything.
func (g *Garage) Apply(ctx context.Context, id string, fn func(models.Vehicle) error) error {
	g.mu.Lock()
	i := g.indexOf(id)
	if i < 0 {
		g.mu.Unlock()
		err := fmt.Errorf("%w: vehicle %s", ErrNotFound, id)
		g.metrics.RecordOperation("apply", err)
		return err
	}
	if err := fn(g.vehicles[i]); errors.Is(err, ErrUnchanged) {
		g.mu.Unlock()
		g.metrics.RecordOperation("apply", nil)
		return nil
	} else if err != nil {
		g.mu.Unlock()
		g.metrics.RecordOperation("apply", err)
		return err
	}
	g.persistLocked(ctx)
	g.mu.Unlock()

	g.metrics.RecordOperation("apply", nil)
	g.publish(ctx, events.Event{Kind: events.VehicleUpdated, VehicleID: id})
	return nil
}

// AddMaintenanceRecord attaches rec to the vehicle with vehicleID. Validation of
// the record itself is left to the vehicle.
func (g *Garage) AddMaintenanceRecord(ctx context.Context, vehicleID string, rec models.MaintenanceRecord) error {
	g.mu.Lock()
	i := g.indexOf(vehicleID)
	if i < 0 {
		g.mu.Unlock()
		err := fmt.Errorf("%w: vehicle %s", ErrNotFound, vehicleID)
		g.metrics.RecordOperation("add_maintenance", err)
		return err
	}
	if err := g.vehicles[i].AddMaintenanceRecord(rec); err != nil {
		g.mu.Unlock()
		g.metrics.RecordOperation("add_maintenance", err)
		return err
	}
	g.persistLocked(ctx)
	g.mu.Unlock()

	g.metrics.RecordOperation("add_maintenance", nil)
	g.log.WithFields(logrus.Fields{
		"vehicle_id": vehicleID,
		"record_id":  rec.ID,
		"service":    rec.ServiceType,
	}).Info("Logged maintenance")
	g.publish(ctx, events.Event{Kind: events.MaintenanceAdded, VehicleID: vehicleID, RecordID: rec.ID, Detail: rec.ServiceType})
	return nil
}

// RemoveMaintenanceRecord deletes one record from a vehicle's history.
func (g *Garage) RemoveMaintenanceRecord(ctx context.Context, vehicleID, recordID string) error {
	g.mu.Lock()
	i := g.indexOf(vehicleID)
	if i < 0 {
		g.mu.Unlock()
		err := fmt.Errorf("%w: vehicle %s", ErrNotFound, vehicleID)
		g.metrics.RecordOperation("remove_maintenance", err)
		return err
	}
	if !g.vehicles[i].RemoveMaintenanceRecord(recordID) {
		g.mu.Unlock()
		err := fmt.Errorf("%w: maintenance record %s", ErrNotFound, recordID)
		g.metrics.RecordOperation("remove_maintenance", err)
		return err
	}
	g.persistLocked(ctx)
	g.mu.Unlock()

	g.metrics.RecordOperation("remove_maintenance", nil)
	g.log.WithFields(logrus.Fields{"vehicle_id": vehicleID, "record_id": recordID}).Info("Removed maintenance record")
	g.publish(ctx, events.Event{Kind: events.MaintenanceRemoved, VehicleID: vehicleID, RecordID: recordID})
	return nil
}

// MaintenanceHistory returns the history of one vehicle, newest first.
func (g *Garage) MaintenanceHistory(vehicleID string) ([]models.MaintenanceRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i := g.indexOf(vehicleID)
	if i < 0 {
		return nil, fmt.Errorf("%w: vehicle %s", ErrNotFound, vehicleID)
	}
	return g.vehicles[i].MaintenanceHistory(), nil
}

// AllMaintenance returns the records of every vehicle, newest first.
func (g *Garage) AllMaintenance() []models.MaintenanceRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []models.MaintenanceRecord
	for _, v := range g.vehicles {
		out = append(out, v.MaintenanceHistory()...)
	}
	slices.SortStableFunc(out, func(a, b models.MaintenanceRecord) int {
		return b.Date.Compare(a.Date)
	})
	return out
}

// Clear empties the garage and removes both keys from the store.
func (g *Garage) Clear(ctx context.Context) error {
	g.mu.Lock()
	g.vehicles = []models.Vehicle{}
	var errs []error
	for _, key := range []string{VehiclesKey, MetaKey} {
		if err := g.store.Remove(ctx, key); err != nil {
			g.metrics.RecordStoreError("clear")
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	err := errors.Join(errs...)
	g.lastPersistErr = err
	g.metrics.SetVehicles(0)
	g.mu.Unlock()

	g.metrics.RecordOperation("clear", err)
	if err != nil {
		g.log.WithError(err).Warn("Failed to clear storage")
		return err
	}
	g.log.Info("Cleared garage")
	g.publish(ctx, events.Event{Kind: events.GarageCleared})
	return nil
}

// Persist writes the whole garage to the store.
func (g *Garage) Persist(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.persistLocked(ctx)
}

// LastPersistError returns the error of the most recent save, or nil when it
// succeeded. While it is non-nil the store may lag behind memory.
func (g *Garage) LastPersistError() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastPersistErr
}

// persistLocked saves the garage. The caller holds g.mu. A failed save is
// logged and remembered; the in-memory change that led to it stays.
func (g *Garage) persistLocked(ctx context.Context) error {
	g.metrics.SetVehicles(len(g.vehicles))
	err := g.write(ctx)
	g.lastPersistErr = err
	if err != nil {
		g.metrics.RecordStoreError("persist")
		g.log.WithError(err).WithField("vehicles", len(g.vehicles)).Warn("Failed to persist garage; changes are kept in memory only")
	}
	return err
}

func (g *Garage) write(ctx context.Context) error {
	data, err := json.Marshal(g.documents())
	if err != nil {
		return fmt.Errorf("%w: encode vehicles: %w", db.ErrStorage, err)
	}
	if err := g.store.Set(ctx, VehiclesKey, data); err != nil {
		return fmt.Errorf("persist %s: %w", VehiclesKey, err)
	}
	meta, err := json.Marshal(Meta{Name: g.name, SavedAt: g.now().UTC().Truncate(time.Second)})
	if err != nil {
		return fmt.Errorf("%w: encode meta: %w", db.ErrStorage, err)
	}
	if err := g.store.Set(ctx, MetaKey, meta); err != nil {
		return fmt.Errorf("persist %s: %w", MetaKey, err)
	}
	return nil
}

func (g *Garage) documents() []models.VehicleDoc {
	docs := make([]models.VehicleDoc, 0, len(g.vehicles))
	for _, v := range g.vehicles {
		docs = append(docs, v.Serialize())
	}
	return docs
}

func (g *Garage) indexOf(id string) int {
	return slices.IndexFunc(g.vehicles, func(v models.Vehicle) bool { return v.ID() == id })
}

func (g *Garage) publish(ctx context.Context, e events.Event) {
	e.Garage = g.Name()
	if e.At.IsZero() {
		e.At = g.now().UTC()
	}
	if err := g.events.Publish(ctx, e); err != nil {
		g.log.WithError(err).WithField("kind", e.Kind).Warn("Failed to publish event")
	}
}
