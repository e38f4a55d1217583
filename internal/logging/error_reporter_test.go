package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"jordanella.com/profile-swiper/internal/apperr"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{apperr.Device("adb.Screencap", "offline"), ErrorCategoryDevice},
		{fmt.Errorf("walk: %w", apperr.Input("cv.Compare", "size mismatch")), ErrorCategoryInput},
		{apperr.Config("gesture.ParseKind", "unknown"), ErrorCategoryConfig},
		{context.Canceled, ErrorCategoryCancelled},
		{fmt.Errorf("adb: %w", context.DeadlineExceeded), ErrorCategorySystem},
		{errors.New("disk full"), ErrorCategorySystem},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			if got := Categorize(tt.err); got != tt.want {
				t.Errorf("Categorize(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorReporterHistory(t *testing.T) {
	Configure(Options{Output: io.Discard, NoColor: true})
	er := NewErrorReporter(2)

	var seen []string
	er.OnError(ErrorCategoryDevice, func(r *ErrorReport) { seen = append(seen, r.Message) })

	if er.Report("Session", "ignored", nil, nil) != nil {
		t.Error("nil error should not be reported")
	}
	er.Report("Session", "first", apperr.Device("adb.Tap", "offline"), nil)
	er.Report("Walker", "second", apperr.Input("cv.Compare", "size"), nil)
	er.Report("Session", "third", apperr.Device("adb.Swipe", "offline"), map[string]interface{}{"profile": 3})

	recent := er.Recent(5)
	if len(recent) != 2 || recent[0].Message != "second" || recent[1].Message != "third" {
		t.Errorf("history not bounded to 2: %+v", recent)
	}
	if stats := er.Stats(); stats[ErrorCategoryDevice] != 1 || stats[ErrorCategoryInput] != 1 {
		t.Errorf("stats = %v", stats)
	}
	if len(seen) != 2 || seen[1] != "third" {
		t.Errorf("callbacks = %v", seen)
	}

	er.Clear()
	if len(er.Recent(1)) != 0 {
		t.Error("Clear left history behind")
	}
}
