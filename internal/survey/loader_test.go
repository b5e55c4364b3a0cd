package survey

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const stationsCSV = `line,x,y,gate1,gate2
100,0,0,0.1,0.2
100,1,0,5.0,4.5
100,2,0,0.2,0.3
110,0,10,1.0,1.1
110,1,10,1.2,1.3
`

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stations.csv", stationsCSV)

	s, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if s.NumStations() != 5 {
		t.Errorf("expected 5 stations, got %d", s.NumStations())
	}
	if len(s.Channels()) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(s.Channels()))
	}
	ch, ok := s.ChannelByName("gate1")
	if !ok {
		t.Fatal("gate1 missing")
	}
	if ch.Values[1] != 5.0 {
		t.Errorf("gate1 station 1: expected 5.0, got %g", ch.Values[1])
	}
	if got := s.LineIDs(); len(got) != 2 || got[0] != 100 || got[1] != 110 {
		t.Errorf("line ids: %v", got)
	}
}

func TestLoadCSV_Malformed(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		content string
	}{
		{"missing file", ""},
		{"no data", "line,x,y,gate1\n"},
		{"too few columns", "line,x,y\n1,0,0\n"},
		{"bad line id", "line,x,y,gate1\nabc,0,0,1\n"},
		{"bad value", "line,x,y,gate1\n1,0,0,notanumber\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "missing.csv")
			if tc.content != "" {
				path = writeFile(t, dir, "bad.csv", tc.content)
			}
			if _, err := LoadCSV(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadPropertyGroups(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "stations.csv", stationsCSV)
	pgPath := writeFile(t, dir, "groups.json", `{
		"groups": [
			{"name": "early", "color": "#0000ff", "channels": ["gate1", "gate2"]}
		]
	}`)

	s, err := LoadCSV(csvPath)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if err := LoadPropertyGroups(s, pgPath); err != nil {
		t.Fatalf("LoadPropertyGroups: %v", err)
	}
	pg, ok := s.PropertyGroup("early")
	if !ok {
		t.Fatal("group not registered")
	}
	if len(pg.Channels) != 2 {
		t.Errorf("expected 2 channels, got %d", len(pg.Channels))
	}

	badPath := writeFile(t, dir, "bad.json", `{"groups": [{"name": "x", "channels": ["nope"]}]}`)
	s2, _ := LoadCSV(csvPath)
	if err := LoadPropertyGroups(s2, badPath); err == nil {
		t.Error("expected error for unknown channel")
	}

	emptyPath := writeFile(t, dir, "empty.json", `{"groups": []}`)
	if err := LoadPropertyGroups(s2, emptyPath); err == nil {
		t.Error("expected error for empty group list")
	}
}
