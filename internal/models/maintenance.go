package models

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLocale is used by MaintenanceRecord.Format.
var DefaultLocale = language.AmericanEnglish

// inputDateLayouts are tried in order when a date comes in as free text
// (forms, CLI flags, persisted documents).
var inputDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// MaintenanceRecord represents one service performed on (or scheduled for) a vehicle.
// Records are values: a vehicle keeps its own copy and a record is replaced, never edited.
type MaintenanceRecord struct {
	ID          string
	VehicleID   string
	Date        time.Time // UTC, second precision
	ServiceType string    // "oil change", "tire rotation", "inspection", ...
	Cost        float64
	Description string
}

// MaintenanceDoc is the persisted form of a MaintenanceRecord.
type MaintenanceDoc struct {
	ID          string   `json:"id"`
	VehicleID   string   `json:"vehicleId"`
	Date        string   `json:"date"` // RFC 3339
	ServiceType string   `json:"type"`
	Cost        *float64 `json:"cost"`
	Description string   `json:"description"`
}

// NewMaintenanceRecord validates its input and builds a record. An ID is generated
// unless WithID supplies one.
func NewMaintenanceRecord(vehicleID string, date time.Time, serviceType string, cost float64, description string, opts ...Option) (MaintenanceRecord, error) {
	o := buildOptions(opts)
	rec := MaintenanceRecord{
		ID:          o.id,
		VehicleID:   strings.TrimSpace(vehicleID),
		Date:        date.UTC().Truncate(time.Second),
		ServiceType: strings.TrimSpace(serviceType),
		Cost:        cost,
		Description: strings.TrimSpace(description),
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := rec.Validate(); err != nil {
		return MaintenanceRecord{}, err
	}
	return rec, nil
}

// ParseMaintenanceRecord builds a record from raw text input, as submitted by a form
// or typed on the command line.
func ParseMaintenanceRecord(vehicleID, dateInput, serviceType, costInput, description string, opts ...Option) (MaintenanceRecord, error) {
	date, err := ParseDate(dateInput)
	if err != nil {
		return MaintenanceRecord{}, err
	}
	cost, err := strconv.ParseFloat(strings.TrimSpace(costInput), 64)
	if err != nil {
		return MaintenanceRecord{}, invalid("cost %q is not a number", costInput)
	}
	return NewMaintenanceRecord(vehicleID, date, serviceType, cost, description, opts...)
}

// ParseDate accepts RFC 3339 timestamps as well as the shorter layouts produced by
// HTML date inputs. Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalid("date is required")
	}
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, invalid("date %q is not a valid timestamp", s)
}

// Validate checks the record invariants.
func (r MaintenanceRecord) Validate() error {
	if r.ID == "" {
		return invalid("maintenance record id is required")
	}
	if r.VehicleID == "" {
		return invalid("maintenance record %s has no vehicle", r.ID)
	}
	if r.Date.IsZero() {
		return invalid("maintenance record %s has no date", r.ID)
	}
	if y := r.Date.UTC().Year(); y < 0 || y > 9999 {
		return invalid("maintenance record %s has a date outside years 0000-9999: %d", r.ID, y)
	}
	if strings.TrimSpace(r.ServiceType) == "" {
		return invalid("service type is required")
	}
	if math.IsNaN(r.Cost) || math.IsInf(r.Cost, 0) {
		return invalid("cost must be a number")
	}
	if r.Cost < 0 {
		return invalid("cost must not be negative, got %.2f", r.Cost)
	}
	return nil
}

// Scheduled reports whether the service date lies after now.
func (r MaintenanceRecord) Scheduled(now time.Time) bool {
	return r.Date.After(now)
}

// Format renders the record for humans using DefaultLocale.
func (r MaintenanceRecord) Format(now time.Time) string {
	return r.FormatLocale(DefaultLocale, now)
}

// FormatLocale renders the record with locale-aware dates and amounts.
// Future records are annotated as scheduled.
func (r MaintenanceRecord) FormatLocale(tag language.Tag, now time.Time) string {
	p := message.NewPrinter(tag)
	layout, currency, scheduled := localeFormat(tag)

	var b strings.Builder
	b.WriteString(p.Sprintf("%s - %s (%s %.2f)", r.Date.Format(layout), r.ServiceType, currency, r.Cost))
	if r.Description != "" {
		b.WriteString(": ")
		b.WriteString(r.Description)
	}
	if r.Scheduled(now) {
		b.WriteString(" [")
		b.WriteString(scheduled)
		b.WriteString("]")
	}
	return b.String()
}

func localeFormat(tag language.Tag) (layout, currency, scheduled string) {
	base, _ := tag.Base()
	switch base.String() {
	case "pt":
		return "02/01/2006", "R$", "agendada"
	default:
		return "Jan 2, 2006", "$", "scheduled"
	}
}

// Serialize returns the persisted form. The date is written as RFC 3339 in UTC.
func (r MaintenanceRecord) Serialize() MaintenanceDoc {
	cost := r.Cost
	return MaintenanceDoc{
		ID:          r.ID,
		VehicleID:   r.VehicleID,
		Date:        r.Date.UTC().Format(time.RFC3339),
		ServiceType: r.ServiceType,
		Cost:        &cost,
		Description: r.Description,
	}
}

// DeserializeMaintenance rebuilds a record from its persisted form. A missing ID is
// regenerated; any other missing or malformed field is a validation error.
func DeserializeMaintenance(doc MaintenanceDoc) (MaintenanceRecord, error) {
	if doc.Cost == nil {
		return MaintenanceRecord{}, invalid("maintenance record %s has no cost", doc.ID)
	}
	date, err := ParseDate(doc.Date)
	if err != nil {
		return MaintenanceRecord{}, err
	}
	return NewMaintenanceRecord(doc.VehicleID, date, doc.ServiceType, *doc.Cost, doc.Description, WithID(doc.ID))
}
