package events

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// dateLayout matches the export format of the upstream dataset.
const dateLayout = "02-01-2006 15:04"

var titleMagRe = regexp.MustCompile(`M\s*(\d+\.?\d*)`)

// LoadCSV reads the cleaned historical dataset from disk.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV decodes the dataset, applying the same cleaning rules the offline
// pipeline uses: date parsing, magnitude recovery from the title column, and
// dropping rows that miss an essential numeric field or the label.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var records []Record
	dropped := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row %d: %w", line, err)
		}

		rec, ok := rowToRecord(row, col)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	log.Info().
		Int("rows", len(records)).
		Int("dropped", dropped).
		Msg("dataset loaded")

	if len(records) == 0 {
		return nil, fmt.Errorf("dataset contains no usable rows")
	}
	return records, nil
}

func rowToRecord(row []string, col map[string]int) (Record, bool) {
	cell := func(names ...string) string {
		for _, n := range names {
			if i, ok := col[n]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
		}
		return ""
	}

	var rec Record
	rec.Title = cell("title")
	rec.Location = cell("location")

	rec.Magnitude = parseCell(cell("magnitude", "mag"))
	if rec.Magnitude == nil {
		// Offline cleaning recovers a missing magnitude from the title text.
		if m := titleMagRe.FindStringSubmatch(rec.Title); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				rec.Magnitude = &v
			}
		}
	}
	rec.DepthKm = parseCell(cell("depth", "depth_km"))
	rec.Latitude = parseCell(cell("latitude", "lat"))
	rec.Longitude = parseCell(cell("longitude", "lon"))
	rec.Significance = parseCell(cell("sig", "significance"))

	if s := cell("magtype", "mag_type"); s != "" {
		rec.MagType = &s
	}
	if s := cell("type", "event_type"); s != "" {
		rec.EventType = &s
	}
	if s := cell("alert"); s != "" {
		rec.Alert = &s
	}

	if s := cell("date_time"); s != "" {
		if ts, err := time.Parse(dateLayout, s); err == nil {
			rec.Time = &ts
			h, mo := ts.Hour(), int(ts.Month())
			rec.Hour = &h
			rec.Month = &mo
		}
	}

	if s := cell("tsunami"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && (v == 0 || v == 1) {
			rec.Tsunami = &v
		}
	}

	// Rows missing an essential numeric field or the label are unusable for
	// training and are dropped, matching the upstream cleaning step.
	if rec.Magnitude == nil || rec.DepthKm == nil ||
		rec.Latitude == nil || rec.Longitude == nil || rec.Tsunami == nil {
		return Record{}, false
	}
	return rec, true
}

func parseCell(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
