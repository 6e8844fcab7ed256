// Package matrix implements the primitive selection decision described in
// spec §4.6: mapping (isolation, frequency, read/write ratio) — or an
// explicit preferred_protocol override — to a concrete synchronization
// primitive.
package matrix

import (
	"errors"

	"github.com/coldbrewlabs/corelane/hint"
	"github.com/coldbrewlabs/corelane/resptr"
)

// ErrUnsupportedProtocol is returned when a caller pins preferred_protocol
// to a combination the runtime does not implement (e.g. OLFIT+Exclusive, or
// TransactionalMemory, which spec §3 recognizes as a field value but this
// runtime maps to no primitive).
var ErrUnsupportedProtocol = errors.New("matrix: preferred_protocol/isolation combination has no mapped primitive")

// Select resolves h to a concrete Primitive.
func Select(h hint.Hint) (resptr.Primitive, error) {
	if h.Isolation == hint.IsolationNone {
		return resptr.None, nil
	}

	if h.PreferredProtocol != hint.ProtocolNone {
		return selectFromProtocol(h.Isolation, h.PreferredProtocol)
	}

	if h.Isolation == hint.Exclusive {
		return selectExclusive(h.AccessFrequency), nil
	}

	return selectExclusiveWriter(h.ReadWriteRatio, h.AccessFrequency), nil
}

func selectFromProtocol(iso hint.Isolation, proto hint.Protocol) (resptr.Primitive, error) {
	switch {
	case proto == hint.ProtocolQueue && iso == hint.Exclusive:
		return resptr.ScheduleAll, nil
	case proto == hint.ProtocolQueue && iso == hint.ExclusiveWriter:
		return resptr.ScheduleWriter, nil
	case proto == hint.ProtocolLatch && iso == hint.Exclusive:
		return resptr.ExclusiveLatch, nil
	case proto == hint.ProtocolLatch && iso == hint.ExclusiveWriter:
		return resptr.ReaderWriterLatch, nil
	case proto == hint.ProtocolOLFIT && iso == hint.ExclusiveWriter:
		return resptr.OLFIT, nil
	default:
		return 0, ErrUnsupportedProtocol
	}
}

// selectExclusive resolves the strict-Exclusive row: excessive/high
// frequency picks ScheduleAll, normal/unused picks ExclusiveLatch — the
// same rule for every read/write ratio, since a strict-Exclusive resource
// has no reader/writer distinction to begin with (spec §4.6). Occupancy
// prediction (channel.Channel.ExcessiveOccupancy) is a separate signal the
// builder uses to pick which channel a resource lands on in the first
// place (builder.selectChannel); it never feeds back into which primitive
// a given frequency resolves to.
func selectExclusive(freq hint.Frequency) resptr.Primitive {
	if freq == hint.FrequencyExcessive || freq == hint.FrequencyHigh {
		return resptr.ScheduleAll
	}
	return resptr.ExclusiveLatch
}

// selectExclusiveWriter implements the ratio × frequency table from spec
// §4.6 verbatim.
func selectExclusiveWriter(ratio hint.RWRatio, freq hint.Frequency) resptr.Primitive {
	switch ratio {
	case hint.RatioHeavyRead:
		return resptr.ScheduleWriter
	case hint.RatioMostlyRead:
		switch freq {
		case hint.FrequencyExcessive, hint.FrequencyHigh:
			return resptr.ScheduleWriter
		default:
			return resptr.OLFIT
		}
	case hint.RatioMostlyWritten:
		switch freq {
		case hint.FrequencyExcessive, hint.FrequencyHigh:
			return resptr.OLFIT
		default:
			return resptr.ReaderWriterLatch
		}
	case hint.RatioHeavyWritten:
		switch freq {
		case hint.FrequencyExcessive, hint.FrequencyHigh:
			return resptr.ScheduleAll
		default:
			return resptr.ReaderWriterLatch
		}
	default: // RatioBalanced
		return resptr.OLFIT
	}
}
