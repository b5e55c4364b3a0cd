package peaks

import (
	"context"
	"sort"
	"sync"

	"github.com/banshee-data/peakline/internal/survey"
)

// Driver is the batch entry point: it turns a set of line ids and index
// partitions into independent per-(line, part) computations. Each task is a
// pure function of its inputs with no shared mutable state, so tasks may run
// on any number of workers.
type Driver struct {
	survey *survey.Survey
	params Params
}

// NewDriver validates the parameters and binds them to a survey.
func NewDriver(s *survey.Survey, params Params) (*Driver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Driver{survey: s, params: params}, nil
}

// Params returns the driver's detection parameters.
func (d *Driver) Params() Params { return d.params }

// LineTask is one deferred per-(line, part) computation. Result computes on
// first call and memoizes; a task must not be shared across goroutines that
// call Result concurrently.
type LineTask struct {
	LineID int
	Part   int

	la       *LineAnomaly
	result   *LineResult
	err      error
	computed bool
}

// Result runs the computation once and returns the memoized outcome. A nil
// result with nil error means the part had no usable geometry.
func (t *LineTask) Result() (*LineResult, error) {
	if !t.computed {
		t.result, t.err = t.la.Compute()
		t.computed = true
	}
	return t.result, t.err
}

// ComputeLines builds one deferred task per (line id, part). parts maps each
// line id to its list of station-index partitions. Tasks are ordered by line
// id, then part, so batch output is reproducible.
func (d *Driver) ComputeLines(parts map[int][][]int) []*LineTask {
	lineIDs := make([]int, 0, len(parts))
	for id := range parts {
		lineIDs = append(lineIDs, id)
	}
	sort.Ints(lineIDs)

	var tasks []*LineTask
	for _, id := range lineIDs {
		for part, indices := range parts[id] {
			tasks = append(tasks, &LineTask{
				LineID: id,
				Part:   part,
				la:     NewLineAnomaly(d.survey, id, part, indices, d.params),
			})
		}
	}
	return tasks
}

// ComputeAllLines builds tasks for every line in the survey, splitting each
// line into contiguous parts where the inter-station distance exceeds maxGap.
func (d *Driver) ComputeAllLines(maxGap float64) []*LineTask {
	parts := make(map[int][][]int)
	for _, id := range d.survey.LineIDs() {
		parts[id] = d.survey.Parts(d.survey.LineIndices(id), maxGap)
	}
	return d.ComputeLines(parts)
}

// Run executes tasks on a fixed-size worker pool and returns the non-empty
// results in task order. The context cancels dispatch of remaining tasks;
// tasks already running are allowed to finish (a per-line computation is
// short and needs no mid-flight cancellation).
func Run(ctx context.Context, tasks []*LineTask, workers int) ([]*LineResult, error) {
	if workers < 1 {
		workers = 1
	}

	type slot struct {
		result *LineResult
		err    error
	}
	slots := make([]slot, len(tasks))

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				r, err := tasks[i].Result()
				slots[i] = slot{result: r, err: err}
			}
		}()
	}

	var dispatchErr error
dispatch:
	for i := range tasks {
		if err := ctx.Err(); err != nil {
			dispatchErr = err
			break
		}
		select {
		case <-ctx.Done():
			dispatchErr = ctx.Err()
			break dispatch
		case work <- i:
		}
	}
	close(work)
	wg.Wait()

	if dispatchErr != nil {
		return nil, dispatchErr
	}

	var results []*LineResult
	for _, s := range slots {
		if s.err != nil {
			return nil, s.err
		}
		if s.result != nil {
			results = append(results, s.result)
		}
	}
	return results, nil
}
