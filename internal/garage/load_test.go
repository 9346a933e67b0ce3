package garage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/garage/internal/db"
	"github.com/ukydev/garage/internal/models"
)

func TestLoad_MissingKey(t *testing.T) {
	g, _ := newTestGarage(t, db.NewMemoryStore())

	report := g.Load(context.Background())

	assert.True(t, report.Missing)
	assert.Equal(t, 0, report.Loaded)
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, DefaultName, g.Name())
}

func TestLoad_MalformedContentIsDiscarded(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"vehicles": [`},
		{"object instead of array", `{"type":"Car"}`},
		{"plain text", `hello`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := db.NewMemoryStore()
			require.NoError(t, store.Set(ctx, VehiclesKey, []byte(tt.raw)))
			g, _ := newTestGarage(t, store)

			report := g.Load(ctx)

			assert.True(t, report.Discarded)
			assert.Equal(t, 0, g.Len())
			_, err := store.Get(ctx, VehiclesKey)
			assert.ErrorIs(t, err, db.ErrKeyNotFound)
		})
	}
}

func TestLoad_UnknownTypeIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	raw := `[
		{"type":"Car","id":"car-1","make":"Toyota","model":"Corolla","year":2020,"running":false,"doors":4,"maintenanceHistory":[]},
		{"type":"Hovercraft","id":"hc-1","make":"Acme","model":"Glide","year":2021,"running":false,"maintenanceHistory":[]}
	]`
	require.NoError(t, store.Set(ctx, VehiclesKey, []byte(raw)))
	g, _ := newTestGarage(t, store)

	report := g.Load(ctx)

	require.Equal(t, 1, g.Len())
	v, ok := g.FindByID("car-1")
	require.True(t, ok)
	assert.Equal(t, models.TypeCar, v.Type())
	assert.Equal(t, 1, report.Loaded)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, Skipped{Index: 1, ID: "hc-1", Reason: SkipUnknownType, Err: report.Skipped[0].Err}, report.Skipped[0])
	assert.ErrorIs(t, report.Skipped[0].Err, models.ErrUnknownType)
}

func TestLoad_PartiallyMalformedEntries(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	raw := `[
		{"type":"Truck","id":"t-1","make":"Volvo","model":"FH","year":2018,"running":true,"cargoCapacity":20,"currentLoad":5,"maintenanceHistory":[]},
		{"type":"Car","id":"c-bad","make":"","model":"Uno","year":2010,"doors":2,"maintenanceHistory":[]},
		{"type":"Car","id":"c-date","make":"Fiat","model":"Uno","year":2010,"doors":2,"maintenanceHistory":[
			{"id":"m1","vehicleId":"c-date","date":"yesterday","type":"Oil","cost":10,"description":""}
		]},
		"just a string",
		{"type":"Truck","id":"t-1","make":"Scania","model":"R","year":2019,"cargoCapacity":30,"maintenanceHistory":[]}
	]`
	require.NoError(t, store.Set(ctx, VehiclesKey, []byte(raw)))
	g, _ := newTestGarage(t, store)

	report := g.Load(ctx)

	assert.Equal(t, 1, report.Loaded)
	var reasons []string
	for _, s := range report.Skipped {
		reasons = append(reasons, s.Reason)
	}
	assert.Equal(t, []string{SkipMalformed, SkipMalformed, SkipMalformed, SkipDuplicate}, reasons)

	v, ok := g.FindByID("t-1")
	require.True(t, ok)
	truck := v.(*models.Truck)
	assert.Equal(t, "Volvo", truck.Make())
	assert.Equal(t, 5.0, truck.CurrentLoad())
	assert.True(t, truck.Running())
}

func TestLoad_StorageErrorYieldsEmptyGarage(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, MetaKey).Return(nil, db.ErrKeyNotFound)
	store.On("Get", mock.Anything, VehiclesKey).Return(nil, db.ErrStorage)
	g, _ := newTestGarage(t, store)

	report := g.Load(context.Background())

	assert.ErrorIs(t, report.Err, db.ErrStorage)
	assert.Equal(t, 0, g.Len())
	store.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	g, _ := newTestGarage(t, store, WithName("Oficina"))

	car := newCar(t, "car-1")
	sports, err := models.NewSportsCar("Ferrari", "F8", 2021, 2, 340, models.WithID("sc-1"), models.WithClock(fixedClock))
	require.NoError(t, err)
	truck, err := models.NewTruck("Volvo", "FH", 2019, 25, models.WithID("t-1"), models.WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, truck.LoadCargo(12.5))

	for _, v := range []models.Vehicle{car, sports, truck} {
		require.NoError(t, g.Add(ctx, v))
	}
	require.NoError(t, g.AddMaintenanceRecord(ctx, "sc-1", newRecord(t, "sc-1", "m-1", "2025-02-03T10:20:30Z")))
	require.NoError(t, g.Apply(ctx, "sc-1", func(v models.Vehicle) error { v.Start(); return nil }))

	reloaded, _ := newTestGarage(t, store)
	report := reloaded.Load(ctx)

	assert.Equal(t, 3, report.Loaded)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, "Oficina", reloaded.Name())
	if diff := cmp.Diff(g.Snapshot(), reloaded.Snapshot()); diff != "" {
		t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
	for _, v := range g.List() {
		got, ok := reloaded.FindByID(v.ID())
		require.True(t, ok)
		assert.Equal(t, v.Describe(), got.Describe())
	}
}

func TestLoad_ConfiguredNameWins(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	require.NoError(t, store.Set(ctx, MetaKey, []byte(`{"name":"Stored","savedAt":"2026-01-01T00:00:00Z"}`)))

	g, _ := newTestGarage(t, store, WithName("Configured"))
	g.Load(ctx)
	assert.Equal(t, "Configured", g.Name())

	g, _ = newTestGarage(t, store)
	g.Load(ctx)
	assert.Equal(t, "Stored", g.Name())
}

func TestLoad_ReplacesContents(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGarage(t, db.NewMemoryStore())
	require.NoError(t, g.Add(ctx, newCar(t, "car-1")))
	require.NoError(t, g.Clear(ctx))
	require.NoError(t, g.Add(ctx, newCar(t, "car-2")))

	g.Load(ctx)

	require.Equal(t, 1, g.Len())
	_, ok := g.FindByID("car-2")
	assert.True(t, ok)
}
