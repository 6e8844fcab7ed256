package matrix

import (
	"testing"

	"github.com/coldbrewlabs/corelane/hint"
	"github.com/coldbrewlabs/corelane/resptr"
)

func TestIsolationNoneAlwaysNone(t *testing.T) {
	h := hint.Hint{Isolation: hint.IsolationNone, AccessFrequency: hint.FrequencyExcessive}
	p, err := Select(h)
	if err != nil || p != resptr.None {
		t.Fatalf("got (%v, %v), want (None, nil)", p, err)
	}
}

func TestProtocolOverrides(t *testing.T) {
	cases := []struct {
		iso   hint.Isolation
		proto hint.Protocol
		want  resptr.Primitive
	}{
		{hint.Exclusive, hint.ProtocolQueue, resptr.ScheduleAll},
		{hint.ExclusiveWriter, hint.ProtocolQueue, resptr.ScheduleWriter},
		{hint.Exclusive, hint.ProtocolLatch, resptr.ExclusiveLatch},
		{hint.ExclusiveWriter, hint.ProtocolLatch, resptr.ReaderWriterLatch},
		{hint.ExclusiveWriter, hint.ProtocolOLFIT, resptr.OLFIT},
	}
	for _, c := range cases {
		h := hint.Hint{Isolation: c.iso, PreferredProtocol: c.proto}
		got, err := Select(h)
		if err != nil {
			t.Fatalf("%v/%v: unexpected error %v", c.iso, c.proto, err)
		}
		if got != c.want {
			t.Fatalf("%v/%v: got %v want %v", c.iso, c.proto, got, c.want)
		}
	}
}

func TestProtocolOLFITWithExclusiveIsUnsupported(t *testing.T) {
	h := hint.Hint{Isolation: hint.Exclusive, PreferredProtocol: hint.ProtocolOLFIT}
	if _, err := Select(h); err != ErrUnsupportedProtocol {
		t.Fatalf("want ErrUnsupportedProtocol, got %v", err)
	}
}

func TestTransactionalMemoryIsUnsupported(t *testing.T) {
	h := hint.Hint{Isolation: hint.ExclusiveWriter, PreferredProtocol: hint.ProtocolTransactionalMemory}
	if _, err := Select(h); err != ErrUnsupportedProtocol {
		t.Fatalf("want ErrUnsupportedProtocol, got %v", err)
	}
}

// TestExclusiveRowFrequencyOnly walks the strict-Exclusive row across every
// frequency value and confirms read/write ratio plays no part in it — spec
// §4.6 describes one rule for the whole row, not one per ratio.
func TestExclusiveRowFrequencyOnly(t *testing.T) {
	want := map[hint.Frequency]resptr.Primitive{
		hint.FrequencyUnused:    resptr.ExclusiveLatch,
		hint.FrequencyNormal:    resptr.ExclusiveLatch,
		hint.FrequencyHigh:      resptr.ScheduleAll,
		hint.FrequencyExcessive: resptr.ScheduleAll,
	}
	for freq, expected := range want {
		h := hint.Hint{Isolation: hint.Exclusive, AccessFrequency: freq}
		if p, err := Select(h); err != nil || p != expected {
			t.Fatalf("freq=%v: got (%v,%v) want %v", freq, p, err, expected)
		}
	}
}

// TestExclusiveWriterMatrixComplete walks every (ratio, frequency) cell of
// the spec §4.6 table and asserts the exact primitive named there (S8).
func TestExclusiveWriterMatrixComplete(t *testing.T) {
	table := map[hint.RWRatio]map[hint.Frequency]resptr.Primitive{
		hint.RatioHeavyRead: {
			hint.FrequencyExcessive: resptr.ScheduleWriter,
			hint.FrequencyHigh:      resptr.ScheduleWriter,
			hint.FrequencyNormal:    resptr.ScheduleWriter,
			hint.FrequencyUnused:    resptr.ScheduleWriter,
		},
		hint.RatioMostlyRead: {
			hint.FrequencyExcessive: resptr.ScheduleWriter,
			hint.FrequencyHigh:      resptr.ScheduleWriter,
			hint.FrequencyNormal:    resptr.OLFIT,
			hint.FrequencyUnused:    resptr.OLFIT,
		},
		hint.RatioBalanced: {
			hint.FrequencyExcessive: resptr.OLFIT,
			hint.FrequencyHigh:      resptr.OLFIT,
			hint.FrequencyNormal:    resptr.OLFIT,
			hint.FrequencyUnused:    resptr.OLFIT,
		},
		hint.RatioMostlyWritten: {
			hint.FrequencyExcessive: resptr.OLFIT,
			hint.FrequencyHigh:      resptr.OLFIT,
			hint.FrequencyNormal:    resptr.ReaderWriterLatch,
			hint.FrequencyUnused:    resptr.ReaderWriterLatch,
		},
		hint.RatioHeavyWritten: {
			hint.FrequencyExcessive: resptr.ScheduleAll,
			hint.FrequencyHigh:      resptr.ScheduleAll,
			hint.FrequencyNormal:    resptr.ReaderWriterLatch,
			hint.FrequencyUnused:    resptr.ReaderWriterLatch,
		},
	}

	for ratio, byFreq := range table {
		for freq, want := range byFreq {
			h := hint.Hint{Isolation: hint.ExclusiveWriter, ReadWriteRatio: ratio, AccessFrequency: freq}
			got, err := Select(h)
			if err != nil {
				t.Fatalf("ratio=%v freq=%v: unexpected error %v", ratio, freq, err)
			}
			if got != want {
				t.Fatalf("ratio=%v freq=%v: got %v want %v", ratio, freq, got, want)
			}
		}
	}
}

// TestNoTupleIsAmbiguous is S8: no representable tuple panics or returns a
// zero Primitive silently when it shouldn't.
func TestNoTupleIsAmbiguous(t *testing.T) {
	isolations := []hint.Isolation{hint.IsolationNone, hint.ExclusiveWriter, hint.Exclusive}
	ratios := []hint.RWRatio{hint.RatioBalanced, hint.RatioHeavyRead, hint.RatioMostlyRead, hint.RatioMostlyWritten, hint.RatioHeavyWritten}
	freqs := []hint.Frequency{hint.FrequencyUnused, hint.FrequencyNormal, hint.FrequencyHigh, hint.FrequencyExcessive}

	for _, iso := range isolations {
		for _, r := range ratios {
			for _, f := range freqs {
				h := hint.Hint{Isolation: iso, ReadWriteRatio: r, AccessFrequency: f}
				p, err := Select(h)
				if iso == hint.IsolationNone && (err != nil || p != resptr.None) {
					t.Fatalf("IsolationNone must always resolve to None cleanly, got (%v,%v)", p, err)
				}
				if iso != hint.IsolationNone && (err != nil || p == resptr.None) {
					t.Fatalf("%v/%v/%v must resolve to a synchronizing primitive, got (%v,%v)", iso, r, f, p, err)
				}
			}
		}
	}
}
