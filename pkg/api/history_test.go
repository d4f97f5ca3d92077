package api

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bentcrank-plotter/pkg/kinematics"
)

func TestHistoryRecord(t *testing.T) {
	h := NewHistory()
	start := time.Now().Add(-time.Second)

	ok := h.Record(start, kinematics.PathSummary{Total: 4, Found: 3, Unreachable: 1}, true, 3, 1, nil)
	if ok.Status != "completed" || ok.Error != "" || len(ok.JobID) != 12 {
		t.Errorf("completed job = %+v", ok)
	}
	if ok.Duration < 1 {
		t.Errorf("duration = %v", ok.Duration)
	}

	failed := h.Record(time.Now(), kinematics.PathSummary{Total: 2}, true, 0, 0, errors.New("write: broken pipe"))
	if failed.Status != "error" || failed.Error != "write: broken pipe" {
		t.Errorf("failed job = %+v", failed)
	}

	cancelled := h.Record(time.Now(), kinematics.PathSummary{Total: 2}, false, 0, 0, fmt.Errorf("batch: %w", context.Canceled))
	if cancelled.Status != "cancelled" {
		t.Errorf("cancelled job status = %q", cancelled.Status)
	}

	jobs := h.List(0, 0)
	if len(jobs) != 3 || jobs[0].JobID != cancelled.JobID || jobs[2].JobID != ok.JobID {
		t.Fatalf("jobs not newest first: %+v", jobs)
	}

	totals := h.Totals()
	if totals.TotalJobs != 3 || totals.TotalPoints != 8 || totals.TotalFound != 3 || totals.TotalSent != 3 {
		t.Errorf("totals = %+v", totals)
	}
	if totals.LongestJob < 1 {
		t.Errorf("longest job = %v", totals.LongestJob)
	}
}

func TestHistoryListPaging(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 5; i++ {
		h.Record(time.Now(), kinematics.PathSummary{Total: i}, false, 0, 0, nil)
	}

	tests := []struct {
		limit, start int
		want         []int
	}{
		{0, 0, []int{4, 3, 2, 1, 0}},
		{2, 0, []int{4, 3}},
		{2, 3, []int{1, 0}},
		{10, 4, []int{0}},
		{1, 5, nil},
		{1, -1, nil},
	}
	for _, tt := range tests {
		got := h.List(tt.limit, tt.start)
		if len(got) != len(tt.want) {
			t.Errorf("List(%d, %d) returned %d jobs, want %d", tt.limit, tt.start, len(got), len(tt.want))
			continue
		}
		for i, j := range got {
			if j.Summary.Total != tt.want[i] {
				t.Errorf("List(%d, %d)[%d] total = %d, want %d", tt.limit, tt.start, i, j.Summary.Total, tt.want[i])
			}
		}
	}
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory()
	var first *PathJob
	for i := 0; i < maxHistoryJobs+10; i++ {
		j := h.Record(time.Now(), kinematics.PathSummary{Total: 1}, false, 0, 0, nil)
		if i == 0 {
			first = j
		}
	}
	if n := len(h.List(0, 0)); n != maxHistoryJobs {
		t.Errorf("kept %d jobs, want %d", n, maxHistoryJobs)
	}
	if _, err := h.Get(first.JobID); err == nil {
		t.Error("oldest job should have aged out")
	}
	if got := h.Totals().TotalJobs; got != maxHistoryJobs+10 {
		t.Errorf("totals count %d jobs", got)
	}

	h.Reset()
	if len(h.List(0, 0)) != 0 || h.Totals() != (JobTotals{}) {
		t.Error("Reset left state behind")
	}
}
