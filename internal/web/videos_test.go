package web

import (
	"reflect"
	"testing"
)

func TestProgressStepsReportsQuarters(t *testing.T) {
	var got []int64
	progress := progressSteps(func(percent int64) {
		got = append(got, percent)
	})

	// Simulate chunked transfer of 100 bytes in uneven steps.
	total := int64(100)
	for _, transferred := range []int64{5, 10, 26, 30, 51, 60, 76, 100} {
		progress(transferred, total)
	}

	want := []int64{5, 26, 51, 76, 100}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reported percents = %v, want %v", got, want)
	}
}

func TestProgressStepsSkipsUnknownTotal(t *testing.T) {
	calls := 0
	progress := progressSteps(func(int64) { calls++ })

	progress(10, 0)
	progress(20, -1)

	if calls != 0 {
		t.Errorf("expected no reports for unknown total, got %d", calls)
	}
}
