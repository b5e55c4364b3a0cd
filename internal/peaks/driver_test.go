package peaks

import (
	"context"
	"math"
	"testing"

	"github.com/banshee-data/peakline/internal/survey"
)

// testSurvey builds a two-line survey with one channel pair and colocated
// bumps on both lines. Lines run east at y=0 and y=100.
func testSurvey(t *testing.T) *survey.Survey {
	t.Helper()
	const stations = 101
	n := stations * 2
	x := make([]float64, n)
	y := make([]float64, n)
	line := make([]int, n)
	ch1 := make([]float64, n)
	ch2 := make([]float64, n)

	for l := 0; l < 2; l++ {
		base := l * stations
		for i := 0; i < stations; i++ {
			x[base+i] = float64(i)
			y[base+i] = float64(l * 100)
			line[base+i] = 100 + l*10
		}
		bump1 := make([]float64, stations)
		bump2 := make([]float64, stations)
		gaussian(bump1, 50, 5, 10)
		gaussian(bump2, 52, 5, 10)
		copy(ch1[base:base+stations], bump1)
		copy(ch2[base:base+stations], bump2)
	}

	s, err := survey.NewSurvey(x, y, line)
	if err != nil {
		t.Fatalf("NewSurvey: %v", err)
	}
	if _, err := s.AddChannel("gate1", ch1); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if _, err := s.AddChannel("gate2", ch2); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if _, err := s.AddPropertyGroup("early", "#0000ff", []string{"gate1", "gate2"}); err != nil {
		t.Fatalf("AddPropertyGroup: %v", err)
	}
	return s
}

func TestDriver_ComputeAllLines(t *testing.T) {
	s := testSurvey(t)
	params := clusterParams()
	d, err := NewDriver(s, params)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	tasks := d.ComputeAllLines(0)
	if len(tasks) != 2 {
		t.Fatalf("expected one task per line, got %d", len(tasks))
	}

	results, err := Run(context.Background(), tasks, 4)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 line results, got %d", len(results))
	}
	// Task order is line id ascending.
	if results[0].LineID != 100 || results[1].LineID != 110 {
		t.Errorf("results out of order: %d, %d", results[0].LineID, results[1].LineID)
	}
	for _, r := range results {
		if len(r.Groups) != 1 {
			t.Errorf("line %d: expected one group, got %d", r.LineID, len(r.Groups))
		}
		if r.Position == nil || len(r.Position.Locations()) < 2 {
			t.Errorf("line %d: missing geometry", r.LineID)
		}
		if az := r.Position.ComputeAzimuth(); math.Abs(az-90) > 1e-6 {
			t.Errorf("line %d: expected east azimuth, got %g", r.LineID, az)
		}
	}
}

func TestDriver_InvalidParams(t *testing.T) {
	s := testSurvey(t)
	params := clusterParams()
	params.MaxMigration = 0
	if _, err := NewDriver(s, params); err == nil {
		t.Fatal("expected validation error for max_migration = 0")
	}
	params = clusterParams()
	params.NGroups = 0
	if _, err := NewDriver(s, params); err == nil {
		t.Fatal("expected validation error for n_groups = 0")
	}
}

func TestDriver_DegeneratePartSkipped(t *testing.T) {
	s := testSurvey(t)
	d, err := NewDriver(s, clusterParams())
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	// A one-station part has no geometry: skipped without error.
	tasks := d.ComputeLines(map[int][][]int{100: {{0}}})
	results, err := Run(context.Background(), tasks, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected degenerate part to be skipped, got %d results", len(results))
	}
}

func TestDriver_PartsSplit(t *testing.T) {
	// One line with a 500-unit jump mid-way splits into two parts.
	n := 40
	x := make([]float64, n)
	y := make([]float64, n)
	line := make([]int, n)
	ch := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		if i >= 20 {
			x[i] += 500
		}
		line[i] = 200
	}
	gaussian(ch[:20], 10, 2, 10)
	gaussian(ch[20:], 10, 2, 10)

	s, err := survey.NewSurvey(x, y, line)
	if err != nil {
		t.Fatalf("NewSurvey: %v", err)
	}
	if _, err := s.AddChannel("gate1", ch); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if _, err := s.AddPropertyGroup("early", "", []string{"gate1"}); err != nil {
		t.Fatalf("AddPropertyGroup: %v", err)
	}

	params := clusterParams()
	params.MinChannels = 1
	d, err := NewDriver(s, params)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	tasks := d.ComputeAllLines(50)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 parts, got %d tasks", len(tasks))
	}
	results, err := Run(context.Background(), tasks, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results for both parts, got %d", len(results))
	}
	for _, r := range results {
		if len(r.Groups) != 1 {
			t.Errorf("part %d: expected one group, got %d", r.Part, len(r.Groups))
		}
	}
}

func TestLineTask_ResultMemoized(t *testing.T) {
	s := testSurvey(t)
	d, err := NewDriver(s, clusterParams())
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	tasks := d.ComputeAllLines(0)
	r1, err := tasks[0].Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	r2, err := tasks[0].Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if r1 != r2 {
		t.Error("task result not memoized")
	}
}

func TestRun_Cancelled(t *testing.T) {
	s := testSurvey(t)
	d, err := NewDriver(s, clusterParams())
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, d.ComputeAllLines(0), 1); err == nil {
		t.Fatal("expected context error from cancelled run")
	}
}
