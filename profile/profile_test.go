package profile

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestMarkBusyWithoutPriorMarkIdleIsNoOp(t *testing.T) {
	p := New(1)
	p.MarkBusy(0)
	var buf bytes.Buffer
	if err := p.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected only the end marker, got %d entries", len(out))
	}
}

func TestShortIdleSpanBelowThresholdIsNotRecorded(t *testing.T) {
	p := New(1)
	p.MarkIdle(0)
	// A real MarkIdle/MarkBusy pair takes longer than 10ns (two clock reads
	// and a mutex), so move the recorded start ahead of the clock: the span
	// MarkBusy measures is then below minIdleSpan.
	p.idleSince[0] = time.Now().Add(time.Second)
	p.MarkBusy(0)
	var buf bytes.Buffer
	if err := p.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected the sub-threshold span to be dropped, got %d entries", len(out))
	}
}

func TestIdleSpanAboveThresholdIsRecordedPerChannel(t *testing.T) {
	p := New(2)
	p.MarkIdle(1)
	time.Sleep(time.Microsecond)
	p.MarkBusy(1)

	var buf bytes.Buffer
	if err := p.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected one channel entry plus the end marker, got %d", len(out))
	}
	first := out[0]
	if int(first["channel"].(float64)) != 1 {
		t.Fatalf("expected channel 1, got %v", first["channel"])
	}
	ranges := first["ranges"].([]any)
	if len(ranges) != 1 {
		t.Fatalf("expected exactly one range, got %d", len(ranges))
	}
	if _, ok := out[1]["end"]; !ok {
		t.Fatal("expected the last entry to be the end marker")
	}
}

func TestRepeatedMarkIdleBeforeMarkBusyDoesNotResetStart(t *testing.T) {
	p := New(1)
	p.MarkIdle(0)
	first := p.idleSince[0]
	p.MarkIdle(0) // should be a no-op
	if p.idleSince[0] != first {
		t.Fatal("second MarkIdle must not reset the recorded idle start")
	}
}
