package spsc

import (
	"testing"

	"github.com/coldbrewlabs/corelane/task"
)

type stubTask struct {
	task.Base
	id int
}

func newStub(id int) *stubTask {
	t := &stubTask{id: id}
	t.Base = task.NewBase(task.None, task.PriorityNormal, false)
	return t
}

func (t *stubTask) Execute(core, channel uint32) task.Result { return task.Result{RemoveSelf: true} }

// TestFIFOOrder is the FIFO invariant from spec §8 property 2, restricted to
// a single (channel, priority) queue.
func TestFIFOOrder(t *testing.T) {
	q := New()
	var want []int
	for i := 0; i < 10; i++ {
		q.Push(newStub(i))
		want = append(want, i)
	}
	var got []int
	for {
		tk := q.Pop()
		if tk == nil {
			break
		}
		got = append(got, tk.(*stubTask).id)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestEmptyPop(t *testing.T) {
	q := New()
	if !q.Empty() {
		t.Fatal("new queue must be empty")
	}
	if q.Pop() != nil {
		t.Fatal("Pop on empty queue must return nil")
	}
}

func TestInterleavedPushPop(t *testing.T) {
	q := New()
	q.Push(newStub(1))
	q.Push(newStub(2))
	if id := q.Pop().(*stubTask).id; id != 1 {
		t.Fatalf("got %d want 1", id)
	}
	q.Push(newStub(3))
	if id := q.Pop().(*stubTask).id; id != 2 {
		t.Fatalf("got %d want 2", id)
	}
	if id := q.Pop().(*stubTask).id; id != 3 {
		t.Fatalf("got %d want 3", id)
	}
	if !q.Empty() {
		t.Fatal("queue should be drained")
	}
}
