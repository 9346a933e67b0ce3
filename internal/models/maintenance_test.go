package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var serviceDate = time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)

func TestNewMaintenanceRecord_Validation(t *testing.T) {
	tests := []struct {
		name        string
		vehicleID   string
		date        time.Time
		serviceType string
		cost        float64
		wantErr     bool
	}{
		{"valid", "v1", serviceDate, "oil change", 150, false},
		{"zero cost is fine", "v1", serviceDate, "inspection", 0, false},
		{"missing vehicle", "", serviceDate, "oil change", 150, true},
		{"zero date", "v1", time.Time{}, "oil change", 150, true},
		{"blank service type", "v1", serviceDate, "   ", 150, true},
		{"negative cost", "v1", serviceDate, "oil change", -1, true},
		{"NaN cost", "v1", serviceDate, "oil change", math.NaN(), true},
		{"infinite cost", "v1", serviceDate, "oil change", math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewMaintenanceRecord(tt.vehicleID, tt.date, tt.serviceType, tt.cost, "")
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrValidation), "expected validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, rec.ID)
		})
	}
}

func TestParseMaintenanceRecord(t *testing.T) {
	rec, err := ParseMaintenanceRecord("v1", "2024-05-01", "tire rotation", "89.90", "front to back", WithID("m1"))
	require.NoError(t, err)
	assert.Equal(t, "m1", rec.ID)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, 89.90, rec.Cost)

	_, err = ParseMaintenanceRecord("v1", "yesterday", "tire rotation", "10", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseMaintenanceRecord("v1", "2024-05-01", "tire rotation", "ten", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseDate_Layouts(t *testing.T) {
	for _, in := range []string{
		"2024-05-01T09:30:15Z",
		"2024-05-01T11:30:15+02:00",
		"2024-05-01T09:30:15.250Z",
	} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(serviceDate), "%s parsed as %s", in, got)
	}

	got, err := ParseDate("2024-05-01T09:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), got)

	_, err = ParseDate("")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseDate("2024-13-45")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMaintenanceRecord_SerializeRoundTrip(t *testing.T) {
	rec, err := NewMaintenanceRecord("v1", serviceDate.Add(400*time.Millisecond), "oil change", 150, "synthetic 5W30", WithID("m1"))
	require.NoError(t, err)

	doc := rec.Serialize()
	assert.Equal(t, "2024-05-01T09:30:15Z", doc.Date)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"m1","vehicleId":"v1","date":"2024-05-01T09:30:15Z","type":"oil change","cost":150,"description":"synthetic 5W30"}`, string(data))

	var decoded MaintenanceDoc
	require.NoError(t, json.Unmarshal(data, &decoded))
	back, err := DeserializeMaintenance(decoded)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestMaintenanceRecord_RejectsDatesRFC3339CannotHold(t *testing.T) {
	for _, date := range []time.Time{
		time.Date(10000, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(-1, 6, 1, 0, 0, 0, 0, time.UTC),
	} {
		_, err := NewMaintenanceRecord("v1", date, "oil change", 10, "")
		assert.ErrorIs(t, err, ErrValidation, "date %v", date)
	}

	for _, date := range []time.Time{
		time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC),
	} {
		rec, err := NewMaintenanceRecord("v1", date, "oil change", 10, "", WithID("m1"))
		require.NoError(t, err, "date %v", date)
		back, err := DeserializeMaintenance(rec.Serialize())
		require.NoError(t, err, "date %v", date)
		assert.Equal(t, rec, back)
	}
}

func TestDeserializeMaintenance_MissingFields(t *testing.T) {
	cost := 10.0
	tests := []struct {
		name string
		doc  MaintenanceDoc
	}{
		{"no cost", MaintenanceDoc{ID: "m1", VehicleID: "v1", Date: "2024-05-01T00:00:00Z", ServiceType: "wash"}},
		{"no date", MaintenanceDoc{ID: "m1", VehicleID: "v1", ServiceType: "wash", Cost: &cost}},
		{"bad date", MaintenanceDoc{ID: "m1", VehicleID: "v1", Date: "Invalid Date", ServiceType: "wash", Cost: &cost}},
		{"no type", MaintenanceDoc{ID: "m1", VehicleID: "v1", Date: "2024-05-01T00:00:00Z", Cost: &cost}},
		{"no vehicle", MaintenanceDoc{ID: "m1", Date: "2024-05-01T00:00:00Z", ServiceType: "wash", Cost: &cost}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeserializeMaintenance(tt.doc)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	rec, err := DeserializeMaintenance(MaintenanceDoc{VehicleID: "v1", Date: "2024-05-01T00:00:00Z", ServiceType: "wash", Cost: &cost})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID, "missing id is regenerated")
}

func TestMaintenanceRecord_Format(t *testing.T) {
	rec, err := NewMaintenanceRecord("v1", serviceDate, "Oil change", 150, "synthetic", WithID("m1"))
	require.NoError(t, err)

	past := rec.Format(serviceDate.Add(24 * time.Hour))
	assert.Equal(t, "May 1, 2024 - Oil change ($ 150.00): synthetic", past)

	future := rec.Format(serviceDate.Add(-24 * time.Hour))
	assert.Contains(t, future, "[scheduled]")

	br := rec.FormatLocale(language.BrazilianPortuguese, serviceDate.Add(-time.Hour))
	assert.Contains(t, br, "01/05/2024")
	assert.Contains(t, br, "R$")
	assert.Contains(t, br, "[agendada]")
}
