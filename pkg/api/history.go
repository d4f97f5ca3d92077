package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"bentcrank-plotter/pkg/kinematics"
)

// maxHistoryJobs bounds the number of path jobs kept in memory.
const maxHistoryJobs = 100

// PathJob records one kinematics.path call.
type PathJob struct {
	JobID     string                 `json:"job_id"`
	StartTime float64                `json:"start_time"`
	Duration  float64                `json:"duration"`
	Summary   kinematics.PathSummary `json:"summary"`
	Streamed  bool                   `json:"streamed"`
	Sent      int                    `json:"sent"`
	Skipped   int                    `json:"skipped"`
	Status    string                 `json:"status"` // "completed", "cancelled", "error"
	Error     string                 `json:"error,omitempty"`
}

// JobTotals aggregates every job seen since start, including ones that
// have aged out of the list.
type JobTotals struct {
	TotalJobs   int     `json:"total_jobs"`
	TotalPoints int     `json:"total_points"`
	TotalFound  int     `json:"total_found"`
	TotalSent   int     `json:"total_sent"`
	TotalTime   float64 `json:"total_time"`
	LongestJob  float64 `json:"longest_job"`
}

// History keeps the most recent path jobs, newest first.
type History struct {
	mu     sync.RWMutex
	jobs   []*PathJob
	totals JobTotals
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

func generateJobID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Record stores a finished job and returns it with its ID assigned.
func (h *History) Record(start time.Time, summary kinematics.PathSummary, streamed bool, sent, skipped int, err error) *PathJob {
	job := &PathJob{
		JobID:     generateJobID(),
		StartTime: float64(start.UnixNano()) / 1e9,
		Duration:  time.Since(start).Seconds(),
		Summary:   summary,
		Streamed:  streamed,
		Sent:      sent,
		Skipped:   skipped,
		Status:    "completed",
	}
	if err != nil {
		job.Status = "error"
		if isCancelled(err) {
			job.Status = "cancelled"
		}
		job.Error = err.Error()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = append([]*PathJob{job}, h.jobs...)
	if len(h.jobs) > maxHistoryJobs {
		h.jobs = h.jobs[:maxHistoryJobs]
	}
	h.totals.TotalJobs++
	h.totals.TotalPoints += summary.Total
	h.totals.TotalFound += summary.Found
	h.totals.TotalSent += sent
	h.totals.TotalTime += job.Duration
	if job.Duration > h.totals.LongestJob {
		h.totals.LongestJob = job.Duration
	}
	return job
}

// List returns up to limit jobs starting at offset start. A limit <= 0
// returns all remaining jobs.
func (h *History) List(limit, start int) []PathJob {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if start < 0 || start >= len(h.jobs) {
		return []PathJob{}
	}
	end := len(h.jobs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]PathJob, 0, end-start)
	for _, j := range h.jobs[start:end] {
		out = append(out, *j)
	}
	return out
}

// Get returns a job by ID.
func (h *History) Get(jobID string) (PathJob, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, j := range h.jobs {
		if j.JobID == jobID {
			return *j, nil
		}
	}
	return PathJob{}, fmt.Errorf("job not found: %s", jobID)
}

// Totals returns the aggregated statistics.
func (h *History) Totals() JobTotals {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totals
}

// Reset clears jobs and totals.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = nil
	h.totals = JobTotals{}
}
