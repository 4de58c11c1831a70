package progress

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// WorkerProgress tracks progress for individual workers
type WorkerProgress struct {
	WorkerID      int
	JobsCompleted int
	CurrentJob    string
	LastUpdate    time.Time
}

// Tracker reports how many pages of an export have been rendered. Redraws
// are throttled so that fast jobs do not flood the terminal (a 2 KB frame
// renders faster than a terminal repaints).
type Tracker struct {
	mu            sync.RWMutex
	out           io.Writer
	label         string
	workers       map[int]*WorkerProgress
	totalJobs     int
	completedJobs int
	failedJobs    int
	startTime     time.Time
	lastDisplay   time.Time
	displayRate   time.Duration
	verbose       bool
}

// Stats contains progress statistics
type Stats struct {
	TotalJobs     int
	CompletedJobs int
	FailedJobs    int
	WorkerCount   int
	Elapsed       time.Duration
	Rate          float64 // jobs per second
	Percentage    float64
}

// NewTracker creates a tracker writing to out. With verbose set, each redraw
// also lists what every worker is doing.
func NewTracker(out io.Writer, label string, workerCount, totalJobs int, verbose bool) *Tracker {
	now := time.Now()
	t := &Tracker{
		out:         out,
		label:       label,
		workers:     make(map[int]*WorkerProgress, workerCount),
		totalJobs:   totalJobs,
		startTime:   now,
		displayRate: 500 * time.Millisecond,
		verbose:     verbose,
	}

	for i := 0; i < workerCount; i++ {
		t.workers[i] = &WorkerProgress{WorkerID: i, LastUpdate: now}
	}

	return t
}

// Start records that a worker picked up a job.
func (t *Tracker) Start(workerID int, job string) {
	t.update(workerID, job, false, nil)
}

// Done records that a worker finished a job.
func (t *Tracker) Done(workerID int, job string, err error) {
	t.update(workerID, job, true, err)
}

func (t *Tracker) update(workerID int, job string, completed bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.workers[workerID]
	if w == nil {
		return
	}

	w.CurrentJob = job
	w.LastUpdate = time.Now()

	if completed {
		w.CurrentJob = ""
		w.JobsCompleted++
		t.completedJobs++
		if err != nil {
			t.failedJobs++
		}
	}

	if time.Since(t.lastDisplay) >= t.displayRate || t.completedJobs == t.totalJobs {
		t.display()
		t.lastDisplay = time.Now()
	}
}

// display redraws the status line; callers hold the lock.
func (t *Tracker) display() {
	elapsed := time.Since(t.startTime)

	var eta time.Duration
	if t.completedJobs > 0 {
		perJob := elapsed / time.Duration(t.completedJobs)
		eta = perJob * time.Duration(t.totalJobs-t.completedJobs)
	}

	fmt.Fprintf(t.out, "\r%s: %d/%d (%.1f%%) | Elapsed: %v | ETA: %v",
		t.label, t.completedJobs, t.totalJobs, t.percentage(),
		elapsed.Round(time.Second), eta.Round(time.Second))
	if t.failedJobs > 0 {
		fmt.Fprintf(t.out, " | Failed: %d", t.failedJobs)
	}

	if !t.verbose {
		return
	}

	fmt.Fprintln(t.out)
	for _, id := range t.workerIDs() {
		w := t.workers[id]
		if w.CurrentJob == "" {
			continue
		}
		status := "ACTIVE"
		if time.Since(w.LastUpdate) > 2*time.Second {
			status = "STALLED"
		}
		fmt.Fprintf(t.out, "  Worker %d [%s] %s (completed: %d)\n", w.WorkerID, status, w.CurrentJob, w.JobsCompleted)
	}
}

// Finish prints the final summary.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime)
	fmt.Fprintf(t.out, "\nRendered %d/%d pages in %v", t.completedJobs-t.failedJobs, t.totalJobs, elapsed.Round(time.Millisecond))
	if t.failedJobs > 0 {
		fmt.Fprintf(t.out, " (%d failed)", t.failedJobs)
	}
	fmt.Fprintln(t.out)

	if !t.verbose {
		return
	}

	fmt.Fprintf(t.out, "Worker Statistics:\n")
	for _, id := range t.workerIDs() {
		w := t.workers[id]
		rate := 0.0
		if elapsed > 0 {
			rate = float64(w.JobsCompleted) / elapsed.Seconds()
		}
		fmt.Fprintf(t.out, "  Worker %d: %d pages (%.1f pages/sec)\n", id, w.JobsCompleted, rate)
	}
}

// Stats returns current progress statistics
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	elapsed := time.Since(t.startTime)
	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(t.completedJobs) / elapsed.Seconds()
	}

	return Stats{
		TotalJobs:     t.totalJobs,
		CompletedJobs: t.completedJobs,
		FailedJobs:    t.failedJobs,
		WorkerCount:   len(t.workers),
		Elapsed:       elapsed,
		Rate:          rate,
		Percentage:    t.percentage(),
	}
}

func (t *Tracker) percentage() float64 {
	if t.totalJobs == 0 {
		return 100
	}
	return float64(t.completedJobs) / float64(t.totalJobs) * 100
}

func (t *Tracker) workerIDs() []int {
	ids := make([]int, 0, len(t.workers))
	for id := range t.workers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
