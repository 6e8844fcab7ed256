package topology

import (
	"os"
	"runtime"
	"testing"
)

func TestDiscoverReturnsAllCPUs(t *testing.T) {
	cs, err := Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cs.Cores) != runtime.NumCPU() {
		t.Fatalf("got %d cores, want %d", len(cs.Cores), runtime.NumCPU())
	}
	if cs.NodeCount < 1 {
		t.Fatal("NodeCount must be at least 1")
	}
}

func TestNewCoreSetRejectsOversizeRequest(t *testing.T) {
	if _, err := NewCoreSet(MaxCores + 1); err != ErrCoreSetTooLarge {
		t.Fatalf("got %v, want ErrCoreSetTooLarge", err)
	}
	if _, err := NewCoreSet(runtime.NumCPU() + 1000); err != ErrCoreSetTooLarge {
		t.Fatalf("got %v, want ErrCoreSetTooLarge", err)
	}
}

func TestNewCoreSetHonorsRequestedSize(t *testing.T) {
	cs, err := NewCoreSet(1)
	if err != nil {
		t.Fatalf("NewCoreSet(1): %v", err)
	}
	if len(cs.Cores) != 1 {
		t.Fatalf("got %d cores, want 1", len(cs.Cores))
	}
}

func TestReadCPUListParsesRanges(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/cpulist"
	if err := os.WriteFile(path, []byte("0-1,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cpus, err := readCPUList(path)
	if err != nil {
		t.Fatalf("readCPUList: %v", err)
	}
	want := []int{0, 1, 4}
	if len(cpus) != len(want) {
		t.Fatalf("got %v, want %v", cpus, want)
	}
	for i := range want {
		if cpus[i] != want[i] {
			t.Fatalf("got %v, want %v", cpus, want)
		}
	}
}
