package hint

import "testing"

func TestZeroValueIsFullyUnset(t *testing.T) {
	var h Hint
	if h.HasNUMAPreference() || h.HasChannelPreference() {
		t.Fatal("zero-value Hint must have no placement preference")
	}
	if h.Isolation != IsolationNone || h.PreferredProtocol != ProtocolNone {
		t.Fatal("zero-value Hint must be IsolationNone/ProtocolNone")
	}
}

func TestWithChannelZeroIsDistinguishable(t *testing.T) {
	h := Hint{}.WithChannel(0)
	if !h.HasChannelPreference() {
		t.Fatal("channel 0 must be distinguishable from unset")
	}
	if *h.ChannelID != 0 {
		t.Fatalf("got channel %d want 0", *h.ChannelID)
	}
}

func TestWithNUMANode(t *testing.T) {
	h := Hint{}.WithNUMANode(1)
	if !h.HasNUMAPreference() || *h.NUMANodeID != 1 {
		t.Fatal("NUMA node preference not recorded correctly")
	}
}
