package garage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ukydev/garage/internal/db"
	"github.com/ukydev/garage/internal/models"
)

// Reasons an entry is dropped while loading.
const (
	SkipUnknownType = "unknown_type"
	SkipMalformed   = "malformed"
	SkipDuplicate   = "duplicate"
)

// Skipped describes one stored entry that could not be loaded.
type Skipped struct {
	Index  int
	ID     string
	Reason string
	Err    error
}

// LoadReport summarizes what Load found in the store.
type LoadReport struct {
	Loaded  int
	Skipped []Skipped
	// Missing is set when the store had no vehicles key.
	Missing bool
	// Discarded is set when the stored value was not a JSON array and was removed.
	Discarded bool
	// Err is the storage error that prevented reading, if any.
	Err error
}

// Load replaces the garage contents with what the store holds. It never fails:
// an unreadable or corrupted store yields an empty garage, and entries that
// cannot be rebuilt are skipped and reported.
func (g *Garage) Load(ctx context.Context) LoadReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	var report LoadReport
	g.vehicles = []models.Vehicle{}
	g.loadMeta(ctx)

	raw, err := g.store.Get(ctx, VehiclesKey)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		report.Missing = true
		g.log.Info("No saved vehicles, starting with an empty garage")
		g.metrics.SetVehicles(0)
		return report
	case err != nil:
		report.Err = err
		g.metrics.RecordStoreError("load")
		g.log.WithError(err).Warn("Failed to read saved vehicles, starting with an empty garage")
		g.metrics.SetVehicles(0)
		return report
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		report.Discarded = true
		g.metrics.RecordSkipped(SkipMalformed)
		g.log.WithError(err).Warn("Saved vehicles are corrupted, discarding them")
		if err := g.store.Remove(ctx, VehiclesKey); err != nil {
			g.metrics.RecordStoreError("load")
			g.log.WithError(err).Warn("Failed to remove corrupted vehicles")
		}
		g.metrics.SetVehicles(0)
		return report
	}

	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		v, err := g.registry.Decode(entry, models.WithClock(g.now))
		if err != nil {
			report.Skipped = append(report.Skipped, g.skip(i, entryID(entry), err))
			continue
		}
		if seen[v.ID()] {
			err := fmt.Errorf("%w: %s", ErrDuplicate, v.ID())
			report.Skipped = append(report.Skipped, g.skip(i, v.ID(), err))
			continue
		}
		seen[v.ID()] = true
		g.vehicles = append(g.vehicles, v)
	}
	report.Loaded = len(g.vehicles)
	g.metrics.SetVehicles(report.Loaded)
	g.log.WithFields(logrus.Fields{
		"loaded":  report.Loaded,
		"skipped": len(report.Skipped),
	}).Info("Loaded garage")
	return report
}

func (g *Garage) loadMeta(ctx context.Context) {
	raw, err := g.store.Get(ctx, MetaKey)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			g.log.WithError(err).Warn("Failed to read garage metadata")
		}
		return
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		g.log.WithError(err).Warn("Garage metadata is corrupted, ignoring it")
		return
	}
	if !g.nameFixed && meta.Name != "" {
		g.name = meta.Name
	}
}

func (g *Garage) skip(index int, id string, err error) Skipped {
	reason := SkipMalformed
	switch {
	case errors.Is(err, models.ErrUnknownType):
		reason = SkipUnknownType
	case errors.Is(err, ErrDuplicate):
		reason = SkipDuplicate
	}
	g.metrics.RecordSkipped(reason)
	g.log.WithError(err).WithFields(logrus.Fields{
		"index":      index,
		"vehicle_id": id,
		"reason":     reason,
	}).Warn("Skipping saved vehicle")
	return Skipped{Index: index, ID: id, Reason: reason, Err: err}
}

// entryID digs the id out of an entry that failed to load, for logging.
func entryID(raw json.RawMessage) string {
	var entry struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &entry)
	return entry.ID
}
