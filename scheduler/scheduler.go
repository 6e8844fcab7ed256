// Package scheduler implements spawn routing from spec §4.9: deciding
// whether a spawned task stays on the calling worker's own SPSC queue or
// crosses to another channel's MPSC queue, and maintaining the Scheduled /
// ScheduledOnChannel / ScheduledOffChannel counters spec §6 names.
package scheduler

import (
	"errors"

	"github.com/coldbrewlabs/corelane/channel"
	"github.com/coldbrewlabs/corelane/idxreg"
	"github.com/coldbrewlabs/corelane/logcore"
	"github.com/coldbrewlabs/corelane/resptr"
	"github.com/coldbrewlabs/corelane/stats"
	"github.com/coldbrewlabs/corelane/task"
)

// ErrNodeOnlyUnsupported is returned for a pure NUMA-node annotation: spec
// §4.9 "not implemented in the core (placeholder for load-based selection
// at that node)."
var ErrNodeOnlyUnsupported = errors.New("scheduler: node-only task annotation is not implemented")

// Scheduler resolves channel ids to channels and applies the routing rule.
type Scheduler struct {
	byID  *idxreg.Registry[*channel.Channel]
	nodes []int // not populated by New; Spawn takes the producer's node as an argument
	stats *stats.Registry
}

// New builds a scheduler over channels, whose ids need not be contiguous.
// s is the shared counter registry.
func New(channels []*channel.Channel, s *stats.Registry) *Scheduler {
	reg := idxreg.New[*channel.Channel](len(channels))
	for _, c := range channels {
		reg.Put(c.ID(), c)
	}
	return &Scheduler{byID: reg, stats: s}
}

func (s *Scheduler) channel(id uint32) *channel.Channel {
	c, ok := s.byID.Get(id)
	if !ok {
		logcore.Fatal("scheduler", "spawn routed to an unregistered channel id")
	}
	return c
}

// Spawn routes t, spawned while running on currentChannelID on
// currentNode, to the correct queue (spec §4.9). It always increments
// Scheduled, and ScheduledOnChannel/ScheduledOffChannel according to the
// routing decision.
func (s *Scheduler) Spawn(t task.Task, currentChannelID uint32, currentNode int) error {
	s.stats.Add(stats.Scheduled, currentChannelID, 1)

	ann := t.Annotation()
	switch ann.Kind {
	case task.AnnotationResource:
		return s.spawnResource(t, ann, currentChannelID, currentNode)
	case task.AnnotationChannel:
		return s.spawnChannel(t, ann, currentChannelID, currentNode)
	case task.AnnotationNode:
		logcore.Warn("scheduler", "dropping node-only annotated task: unsupported")
		return ErrNodeOnlyUnsupported
	default:
		s.channel(currentChannelID).PushLocal(t)
		s.stats.Add(stats.ScheduledOnChannel, currentChannelID, 1)
		return nil
	}
}

func (s *Scheduler) spawnResource(t task.Task, ann task.Annotation, currentChannelID uint32, currentNode int) error {
	home := ann.Resource.Channel()
	prim := ann.Resource.Primitive()

	keepLocal := home == currentChannelID ||
		(t.IsReadonly() && prim != resptr.ScheduleAll) ||
		(prim != resptr.None && prim != resptr.ScheduleAll && prim != resptr.ScheduleWriter)

	if keepLocal {
		s.channel(currentChannelID).PushLocal(t)
		s.stats.Add(stats.ScheduledOnChannel, currentChannelID, 1)
		return nil
	}
	s.channel(home).PushRemote(currentNode, t)
	s.stats.Add(stats.ScheduledOffChannel, currentChannelID, 1)
	return nil
}

func (s *Scheduler) spawnChannel(t task.Task, ann task.Annotation, currentChannelID uint32, currentNode int) error {
	if ann.ChannelID == currentChannelID {
		s.channel(currentChannelID).PushLocal(t)
		s.stats.Add(stats.ScheduledOnChannel, currentChannelID, 1)
		return nil
	}
	s.channel(ann.ChannelID).PushRemote(currentNode, t)
	s.stats.Add(stats.ScheduledOffChannel, currentChannelID, 1)
	return nil
}
