package survey

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Station CSV layout: a header row naming the columns, then one row per
// station. The first three columns must be line, x and y; every remaining
// column becomes a channel named after its header.
const (
	colLine = 0
	colX    = 1
	colY    = 2
)

// LoadCSV reads a station file into a Survey.
func LoadCSV(path string) (*Survey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open survey file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse survey csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("survey file %s has no data rows", path)
	}

	header := records[0]
	if len(header) < 4 {
		return nil, fmt.Errorf("survey header needs line,x,y and at least one channel column, got %d columns", len(header))
	}

	n := len(records) - 1
	x := make([]float64, n)
	y := make([]float64, n)
	line := make([]int, n)
	channelValues := make([][]float64, len(header)-3)
	for c := range channelValues {
		channelValues[c] = make([]float64, n)
	}

	for i, row := range records[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i+2, len(row), len(header))
		}
		line[i], err = strconv.Atoi(row[colLine])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad line id %q: %w", i+2, row[colLine], err)
		}
		x[i], err = strconv.ParseFloat(row[colX], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad x %q: %w", i+2, row[colX], err)
		}
		y[i], err = strconv.ParseFloat(row[colY], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad y %q: %w", i+2, row[colY], err)
		}
		for c := range channelValues {
			channelValues[c][i], err = strconv.ParseFloat(row[c+3], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad value %q in column %s: %w", i+2, row[c+3], header[c+3], err)
			}
		}
	}

	s, err := NewSurvey(x, y, line)
	if err != nil {
		return nil, err
	}
	for c, values := range channelValues {
		if _, err := s.AddChannel(header[c+3], values); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// propertyGroupFile is the JSON sidecar describing property groups by
// channel display name.
type propertyGroupFile struct {
	Groups []struct {
		Name     string   `json:"name"`
		Color    string   `json:"color"`
		Channels []string `json:"channels"`
	} `json:"groups"`
}

// LoadPropertyGroups reads a property-group sidecar and registers each group
// on the survey. Channel names must match the station file's headers.
func LoadPropertyGroups(s *Survey, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read property groups: %w", err)
	}
	var pf propertyGroupFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse property groups: %w", err)
	}
	if len(pf.Groups) == 0 {
		return fmt.Errorf("property group file %s defines no groups", path)
	}
	for _, g := range pf.Groups {
		if _, err := s.AddPropertyGroup(g.Name, g.Color, g.Channels); err != nil {
			return err
		}
	}
	return nil
}
