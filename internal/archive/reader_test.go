package archive

import (
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"pumpsync/internal/model"
)

func drain(t *testing.T, r *Reader) []model.DeviceEvent {
	t.Helper()
	var out []model.DeviceEvent
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, e)
	}
}

func TestReader_OrderedEvents(t *testing.T) {
	t.Parallel()

	payload := strings.Join([]string{
		`{"seq":1,"type":3,"ts":"2026-08-30T08:00:00Z","info":"{\"Key\":\"A\"}"}`,
		``,
		`{"seq":2,"type":4,"ts":"2026-08-30T08:05:00Z","info":"{}"}`,
		`{"seq":3,"type":8,"ts":"2026-08-30T08:10:00+02:00","info":""}`,
	}, "\n")

	r := NewReader([]byte(payload), zaptest.NewLogger(t))
	events := drain(t, r)

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Seq != 1 || events[1].Seq != 2 || events[2].Seq != 3 {
		t.Fatalf("events out of source order: %+v", events)
	}
	if events[0].TypeID != 3 || events[0].RawInfo != `{"Key":"A"}` {
		t.Fatalf("first event mismatch: %+v", events[0])
	}
	want := time.Date(2026, 8, 30, 6, 10, 0, 0, time.UTC)
	if !events[2].Timestamp.Equal(want) {
		t.Fatalf("timestamp not normalized to UTC: %v", events[2].Timestamp)
	}
	if r.Skipped() != 0 {
		t.Fatalf("skipped=%d, want 0", r.Skipped())
	}
}

func TestReader_SkipsMalformedRecords(t *testing.T) {
	t.Parallel()

	lines := make([]string, 0, 11)
	for i := 0; i < 5; i++ {
		lines = append(lines, `{"seq":`+string(rune('1'+i))+`,"type":3,"ts":"2026-08-30T08:00:00Z","info":"{}"}`)
	}
	lines = append(lines, `{"seq":6,"type":3,"ts":"not-a-time","info":"{}"`) // malformed
	for i := 0; i < 5; i++ {
		lines = append(lines, `{"seq":`+string(rune('1'+i))+`0,"type":4,"ts":"2026-08-30T09:00:00Z","info":"{}"}`)
	}

	r := NewReader([]byte(strings.Join(lines, "\n")), zaptest.NewLogger(t))
	events := drain(t, r)

	if len(events) != 10 {
		t.Fatalf("got %d events, want 10", len(events))
	}
	if r.Skipped() != 1 {
		t.Fatalf("skipped=%d, want 1", r.Skipped())
	}
}

func TestReader_EmptyPayload(t *testing.T) {
	t.Parallel()

	r := NewReader(nil, zaptest.NewLogger(t))
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("want io.EOF, got %v", err)
	}
}
