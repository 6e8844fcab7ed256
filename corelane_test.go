package corelane

import (
	"runtime"
	"testing"

	"github.com/coldbrewlabs/corelane/hint"
	"github.com/coldbrewlabs/corelane/stats"
	"github.com/coldbrewlabs/corelane/task"
)

// helloTask is spec §8 scenario S1's single task: it "prints" (here, flips
// a flag the test can observe) and stops the runtime in the same Execute
// call, standing in for the original's make_stop() result.
type helloTask struct {
	task.Base
	rt  *Runtime
	ran *bool
}

func (t *helloTask) Execute(coreID, channelID uint32) task.Result {
	*t.ran = true
	t.rt.Stop()
	return task.Result{RemoveSelf: true}
}

// TestHelloExecute is spec §8 S1: one core, one task, Executed == 1 after
// StartAndWait returns. Scheduled == 1, the one Spawn call that seeded the
// task before the runtime started — this port has no second, implicit
// "stop task" the way the original's make_stop() result did; stopping is
// a side effect of the one task's own Execute instead.
func TestHelloExecute(t *testing.T) {
	cfg, err := DefaultConfig(1)
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	rt, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	var ran bool
	tk := &helloTask{rt: rt, ran: &ran}
	tk.Base = task.NewBase(task.None, task.PriorityNormal, false)

	if err := Spawn(rt, tk, 0); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	rt.StartAndWait()

	if !ran {
		t.Fatal("expected the task to have executed")
	}
	if got := rt.Statistic(stats.Executed, -1); got != 1 {
		t.Fatalf("Executed = %d, want 1", got)
	}
	if got := rt.Statistic(stats.Scheduled, -1); got != 1 {
		t.Fatalf("Scheduled = %d, want 1", got)
	}
}

// pingTask is spec §8 scenario S2's task A: annotated with a resource whose
// home channel is 1 and whose primitive is ScheduleAll, so it must execute
// on worker 1 no matter which worker it was spawned from. It stops the
// runtime once it runs, so the test doesn't need a separate shutdown task.
type pingTask struct {
	task.Base
	rt       *Runtime
	ranOn    *uint32
	ranAtAll *bool
}

func (t *pingTask) Execute(coreID, channelID uint32) task.Result {
	*t.ranAtAll = true
	*t.ranOn = channelID
	t.rt.Stop()
	return task.Result{RemoveSelf: true}
}

// TestTwoCorePing is spec §8 S2: core 0 spawns a writer task annotated with
// a resource homed on channel 1 under ScheduleAll. Under any interleaving
// it must execute on worker 1, with ScheduledOffChannel@0 == 1 and
// Executed@1 == 1.
func TestTwoCorePing(t *testing.T) {
	if runtime.NumCPU() < 2 {
		t.Skip("requires at least 2 logical cores")
	}

	cfg, err := DefaultConfig(2)
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	rt, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	h := hint.Hint{
		Isolation:         hint.Exclusive,
		PreferredProtocol: hint.ProtocolQueue,
	}.WithChannel(1)

	resPtr, _, err := NewResource[struct{}](rt, h, nil)
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	if resPtr.Channel() != 1 {
		t.Fatalf("resource home channel = %d, want 1", resPtr.Channel())
	}

	var ranAtAll bool
	var ranOn uint32
	tk := &pingTask{rt: rt, ranOn: &ranOn, ranAtAll: &ranAtAll}
	tk.Base = task.NewBase(task.OnResource(resPtr, 0), task.PriorityNormal, false)

	if err := Spawn(rt, tk, 0); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	rt.StartAndWait()

	if !ranAtAll {
		t.Fatal("expected the task to have executed")
	}
	if ranOn != 1 {
		t.Fatalf("task executed on channel %d, want 1", ranOn)
	}
	if got := rt.Statistic(stats.ScheduledOffChannel, 0); got != 1 {
		t.Fatalf("ScheduledOffChannel@0 = %d, want 1", got)
	}
	if got := rt.Statistic(stats.Executed, 1); got != 1 {
		t.Fatalf("Executed@1 = %d, want 1", got)
	}
}
