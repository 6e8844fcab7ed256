// Package topology enumerates logical cores and NUMA nodes and pins the
// calling OS thread to one, grounding spec §2 "Topology/Env" and §6
// "Environment expectations."
package topology

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/coldbrewlabs/corelane/logcore"
)

// MaxCores bounds the core_set size at compile time (spec §6 "Core count
// bounded (default 128)").
const MaxCores = 128

// MaxNUMANodes bounds the NUMA node count (spec §6 "NUMA node count bounded
// at compile time (default 2)").
const MaxNUMANodes = 2

// ErrCoreSetTooLarge is returned by NewCoreSet when the caller asks for more
// cores than the platform reports, or more than MaxCores. This is one of
// the two recoverable boundary conditions spec §7 names.
var ErrCoreSetTooLarge = errors.New("topology: requested core set exceeds available or compile-time core count")

// ErrTooManyNUMANodes describes a platform that reports more nodes than
// MaxNUMANodes. Discover does not return it: it keeps the lowest-numbered
// MaxNUMANodes nodes, logs a warning, and assigns the cores of the dropped
// nodes to node 0.
var ErrTooManyNUMANodes = errors.New("topology: platform reports more NUMA nodes than the compile-time maximum")

// Core describes one logical CPU and the NUMA node that owns it.
type Core struct {
	ID     int
	NodeID int
}

// CoreSet is the ordered list of logical cores the runtime is pinned to
// (spec GLOSSARY "Core set"). Index i in Cores is worker i's core.
type CoreSet struct {
	Cores     []Core
	NodeCount int
}

// Discover enumerates every core the OS reports along with its NUMA node,
// reading /sys/devices/system/node/node*/cpulist on Linux and falling back
// to a single node of all cores where that hierarchy doesn't exist.
func Discover() (*CoreSet, error) {
	ncpu := runtime.NumCPU()
	nodes := discoverNodes(ncpu)
	if len(nodes) > MaxNUMANodes {
		logcore.Warn("topology", fmt.Sprintf("platform reports %d NUMA nodes, clamping to %d", len(nodes), MaxNUMANodes))
		ids := make([]int, 0, len(nodes))
		for id := range nodes {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids[MaxNUMANodes:] {
			delete(nodes, id)
		}
	}

	cpuToNode := make([]int, ncpu)
	for i := range cpuToNode {
		cpuToNode[i] = -1
	}
	for nodeID, cpus := range nodes {
		for _, cpu := range cpus {
			if cpu < ncpu {
				cpuToNode[cpu] = nodeID
			}
		}
	}

	cs := &CoreSet{NodeCount: max(1, len(nodes))}
	for cpu := 0; cpu < ncpu; cpu++ {
		node := cpuToNode[cpu]
		if node < 0 {
			node = 0
		}
		cs.Cores = append(cs.Cores, Core{ID: cpu, NodeID: node})
	}
	return cs, nil
}

// NewCoreSet validates and returns a CoreSet restricted to the first n
// cores discovered on the platform. It returns ErrCoreSetTooLarge rather
// than panicking, per spec §7's recoverable-boundary-conditions list.
func NewCoreSet(n int) (*CoreSet, error) {
	if n <= 0 || n > MaxCores {
		return nil, ErrCoreSetTooLarge
	}
	full, err := Discover()
	if err != nil {
		return nil, err
	}
	if n > len(full.Cores) {
		return nil, ErrCoreSetTooLarge
	}
	return &CoreSet{Cores: full.Cores[:n], NodeCount: full.NodeCount}, nil
}

func discoverNodes(ncpu int) map[int][]int {
	nodes := map[int][]int{}
	entries, err := os.ReadDir("/sys/devices/system/node")
	if err != nil {
		return map[int][]int{0: allCPUs(ncpu)}
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(name, "node"))
		if err != nil {
			continue
		}
		cpus, err := readCPUList(filepath.Join("/sys/devices/system/node", name, "cpulist"))
		if err != nil {
			continue
		}
		nodes[id] = cpus
	}
	if len(nodes) == 0 {
		return map[int][]int{0: allCPUs(ncpu)}
	}
	return nodes
}

func allCPUs(n int) []int {
	cpus := make([]int, n)
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}

// readCPUList parses a Linux cpulist file, e.g. "0-3,8-11".
func readCPUList(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cpus []int
	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		for _, part := range strings.Split(strings.TrimSpace(scanner.Text()), ",") {
			if part == "" {
				continue
			}
			if lo, hi, ok := strings.Cut(part, "-"); ok {
				loN, err1 := strconv.Atoi(lo)
				hiN, err2 := strconv.Atoi(hi)
				if err1 != nil || err2 != nil {
					continue
				}
				for c := loN; c <= hiN; c++ {
					cpus = append(cpus, c)
				}
			} else {
				c, err := strconv.Atoi(part)
				if err == nil {
					cpus = append(cpus, c)
				}
			}
		}
	}
	sort.Ints(cpus)
	return cpus, scanner.Err()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
