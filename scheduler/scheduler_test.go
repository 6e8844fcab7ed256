package scheduler

import (
	"testing"
	"unsafe"

	"github.com/coldbrewlabs/corelane/channel"
	"github.com/coldbrewlabs/corelane/resptr"
	"github.com/coldbrewlabs/corelane/stats"
	"github.com/coldbrewlabs/corelane/task"
)

type stubTask struct {
	task.Base
}

func (t *stubTask) Execute(core, ch uint32) task.Result { return task.Result{RemoveSelf: true} }

func newResourceTask(channelID uint32, prim resptr.Primitive, readonly bool) *stubTask {
	var x int
	ptr := resptr.Pack(unsafe.Pointer(&x), channelID, prim)
	t := &stubTask{}
	t.Base = task.NewBase(task.OnResource(ptr, 0), task.PriorityNormal, readonly)
	return t
}

func newChannelTask(channelID uint32) *stubTask {
	t := &stubTask{}
	t.Base = task.NewBase(task.OnChannel(channelID), task.PriorityNormal, false)
	return t
}

func newPlainTask() *stubTask {
	t := &stubTask{}
	t.Base = task.NewBase(task.None, task.PriorityNormal, false)
	return t
}

func buildTwoChannels() ([]*channel.Channel, *stats.Registry) {
	chans := []*channel.Channel{
		channel.New(0, 0, 2, 0),
		channel.New(1, 1, 2, 0),
	}
	return chans, stats.New(2)
}

func TestSpawnKeepsLocalWhenHomeMatchesCurrent(t *testing.T) {
	chans, st := buildTwoChannels()
	s := New(chans, st)
	tk := newResourceTask(0, resptr.ScheduleAll, false)
	if err := s.Spawn(tk, 0, 0); err != nil {
		t.Fatal(err)
	}
	if st.Read(stats.ScheduledOnChannel, 0) != 1 {
		t.Fatal("expected on-channel count to be 1")
	}
}

func TestSpawnReaderUnderScheduleWriterStaysLocal(t *testing.T) {
	chans, st := buildTwoChannels()
	s := New(chans, st)
	tk := newResourceTask(1, resptr.ScheduleWriter, true) // home=1, current=0, readonly
	if err := s.Spawn(tk, 0, 0); err != nil {
		t.Fatal(err)
	}
	if st.Read(stats.ScheduledOnChannel, 0) != 1 {
		t.Fatal("readonly task under ScheduleWriter must stay local")
	}
}

func TestSpawnWriterUnderScheduleAllRoutesToHome(t *testing.T) {
	chans, st := buildTwoChannels()
	s := New(chans, st)
	tk := newResourceTask(1, resptr.ScheduleAll, false) // home=1, current=0, writer
	if err := s.Spawn(tk, 0, 0); err != nil {
		t.Fatal(err)
	}
	if st.Read(stats.ScheduledOffChannel, 0) != 1 {
		t.Fatal("writer under ScheduleAll with a different home must route off-channel")
	}
}

func TestSpawnExclusiveLatchAlwaysStaysLocal(t *testing.T) {
	chans, st := buildTwoChannels()
	s := New(chans, st)
	tk := newResourceTask(1, resptr.ExclusiveLatch, false) // writer, different home
	if err := s.Spawn(tk, 0, 0); err != nil {
		t.Fatal(err)
	}
	if st.Read(stats.ScheduledOnChannel, 0) != 1 {
		t.Fatal("ExclusiveLatch tasks may run on any worker and must stay local")
	}
}

func TestSpawnChannelAnnotationRoutesOffChannel(t *testing.T) {
	chans, st := buildTwoChannels()
	s := New(chans, st)
	tk := newChannelTask(1)
	if err := s.Spawn(tk, 0, 0); err != nil {
		t.Fatal(err)
	}
	if st.Read(stats.ScheduledOffChannel, 0) != 1 {
		t.Fatal("channel-annotated task targeting a different channel must route off-channel")
	}
}

func TestSpawnNoAnnotationStaysLocal(t *testing.T) {
	chans, st := buildTwoChannels()
	s := New(chans, st)
	tk := newPlainTask()
	if err := s.Spawn(tk, 0, 0); err != nil {
		t.Fatal(err)
	}
	if st.Read(stats.ScheduledOnChannel, 0) != 1 {
		t.Fatal("unannotated task must stay local")
	}
}

func TestSpawnNodeAnnotationReturnsUnsupported(t *testing.T) {
	chans, st := buildTwoChannels()
	s := New(chans, st)
	t2 := &stubTask{}
	t2.Base = task.NewBase(task.OnNode(0), task.PriorityNormal, false)
	if err := s.Spawn(t2, 0, 0); err != ErrNodeOnlyUnsupported {
		t.Fatalf("got %v, want ErrNodeOnlyUnsupported", err)
	}
}
