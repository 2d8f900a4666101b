// Package events defines the seismic event record consumed by the feature
// pipeline, plus the loader that turns the cleaned historical dataset into
// records. A Record is a plain value: fields are optional (nil) so the same
// type carries both complete historical rows and partial user submissions.
package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Canonical field names. The feature spec declares its dependencies in terms
// of these, and prediction payloads use them as JSON keys.
const (
	FieldMagnitude    = "magnitude"
	FieldDepthKm      = "depth_km"
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldSignificance = "significance"
	FieldHour         = "hour"
	FieldMonth        = "month"
	FieldMagType      = "mag_type"
	FieldEventType    = "event_type"
	FieldAlert        = "alert"
)

// Record is a single seismic event. Nil means the field was not supplied.
type Record struct {
	Magnitude    *float64 `json:"magnitude,omitempty"`
	DepthKm      *float64 `json:"depth_km,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Significance *float64 `json:"significance,omitempty"`
	Hour         *int     `json:"hour,omitempty"`
	Month        *int     `json:"month,omitempty"`
	MagType      *string  `json:"mag_type,omitempty"`
	EventType    *string  `json:"event_type,omitempty"`
	Alert        *string  `json:"alert,omitempty"`

	// Tsunami is the binary label; nil for inference-time input.
	Tsunami *int `json:"tsunami,omitempty"`

	Time     *time.Time `json:"date_time,omitempty"`
	Title    string     `json:"title,omitempty"`
	Location string     `json:"location,omitempty"`
}

// Float returns the named numeric field. The second return reports presence.
func (r Record) Float(name string) (float64, bool) {
	switch name {
	case FieldMagnitude:
		return deref(r.Magnitude)
	case FieldDepthKm:
		return deref(r.DepthKm)
	case FieldLatitude:
		return deref(r.Latitude)
	case FieldLongitude:
		return deref(r.Longitude)
	case FieldSignificance:
		return deref(r.Significance)
	case FieldHour:
		if r.Hour == nil {
			return 0, false
		}
		return float64(*r.Hour), true
	case FieldMonth:
		if r.Month == nil {
			return 0, false
		}
		return float64(*r.Month), true
	}
	return 0, false
}

// Category returns the named categorical field.
func (r Record) Category(name string) (string, bool) {
	var p *string
	switch name {
	case FieldMagType:
		p = r.MagType
	case FieldEventType:
		p = r.EventType
	case FieldAlert:
		p = r.Alert
	}
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// FromMap builds a Record from a decoded JSON object. Individual fields that
// cannot be interpreted are skipped with a warning rather than rejected; the
// caller decides whether an empty payload is acceptable.
func FromMap(in map[string]any) (Record, []string) {
	var rec Record
	var warnings []string

	setFloat := func(field string, dst **float64) {
		v, ok := in[field]
		if !ok || v == nil {
			return
		}
		f, err := toFloat(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("field %s: %v", field, err))
			return
		}
		*dst = &f
	}
	setInt := func(field string, dst **int) {
		v, ok := in[field]
		if !ok || v == nil {
			return
		}
		f, err := toFloat(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("field %s: %v", field, err))
			return
		}
		n := int(f)
		*dst = &n
	}
	setString := func(field string, dst **string) {
		v, ok := in[field]
		if !ok || v == nil {
			return
		}
		s, ok := v.(string)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("field %s: expected string, got %T", field, v))
			return
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		*dst = &s
	}

	setFloat(FieldMagnitude, &rec.Magnitude)
	setFloat(FieldDepthKm, &rec.DepthKm)
	setFloat(FieldLatitude, &rec.Latitude)
	setFloat(FieldLongitude, &rec.Longitude)
	setFloat(FieldSignificance, &rec.Significance)
	setInt(FieldHour, &rec.Hour)
	setInt(FieldMonth, &rec.Month)
	setString(FieldMagType, &rec.MagType)
	setString(FieldEventType, &rec.EventType)
	setString(FieldAlert, &rec.Alert)

	return rec, warnings
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", t)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}
