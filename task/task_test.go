package task

import "testing"

// countingTask increments a shared counter and reports itself done once a
// target count is reached, chaining itself as its own successor otherwise —
// the "chain, not a graph" pattern spec §9 requires.
type countingTask struct {
	Base
	counter *int
	target  int
}

func newCountingTask(counter *int, target int) *countingTask {
	t := &countingTask{counter: counter, target: target}
	t.Base = NewBase(None, PriorityNormal, false)
	return t
}

func (t *countingTask) Execute(coreID, channelID uint32) Result {
	*t.counter++
	if *t.counter >= t.target {
		return Result{RemoveSelf: true}
	}
	return Result{Successor: t, RemoveSelf: true}
}

func TestTaskContractChaining(t *testing.T) {
	counter := 0
	var cur Task = newCountingTask(&counter, 3)
	for i := 0; i < 10; i++ {
		res := cur.Execute(0, 0)
		if res.Successor == nil {
			break
		}
		cur = res.Successor
	}
	if counter != 3 {
		t.Fatalf("counter = %d, want 3", counter)
	}
}

func TestIntrusiveLink(t *testing.T) {
	a := newCountingTask(new(int), 1)
	b := newCountingTask(new(int), 1)
	if a.Next() != nil {
		t.Fatal("fresh task must have nil Next")
	}
	a.SetNext(b)
	if a.Next() != Task(b) {
		t.Fatal("Next did not round-trip through SetNext")
	}
}

func TestAnnotationConstructors(t *testing.T) {
	if OnChannel(7).Kind != AnnotationChannel || OnChannel(7).ChannelID != 7 {
		t.Fatal("OnChannel built wrong annotation")
	}
	if OnNode(2).Kind != AnnotationNode || OnNode(2).NodeID != 2 {
		t.Fatal("OnNode built wrong annotation")
	}
	if None.Kind != AnnotationNone {
		t.Fatal("None must be AnnotationNone")
	}
}
