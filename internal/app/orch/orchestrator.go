package orch

import (
	"time"

	"github.com/dkeye/voicechat/internal/app"
	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator composes the coordinators and performs every delivery. It is
// the only place that writes frames to connections.
type Orchestrator struct {
	Sessions *app.Sessions
	Presence *app.PresenceCoordinator
	Channels *app.ChannelDirectory
	History  *app.HistoryPager
	Calls    *app.CallCoordinator
	Embeds   *app.EmbedPipeline
	Users    *app.UserDirectory
	Messages core.MessageStore
	Files    core.FileStore
	Blobs    core.BlobStore
	Policy   app.Policy
	Bus      *core.Bus

	MaxMessageLen int
	MaxUpload     int64
	Now           func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Deliver encodes each event once and queues it on every addressed
// connection. Connections that cannot keep up go through the policy.
func (o *Orchestrator) Deliver(ds []app.Delivery) {
	for _, d := range ds {
		if len(d.Conns) == 0 {
			continue
		}
		frame, err := d.Event.Encode()
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("event", d.Event.Type).Msg("encode event")
			continue
		}
		for _, conn := range d.Conns {
			sig, ok := o.Sessions.Signal(conn)
			if !ok {
				continue
			}
			if err := sig.TrySend(frame); err != nil {
				o.onBackPressure(conn, d.Event)
			}
		}
	}
}

// broadcast queues ev on every connection in room's group.
func (o *Orchestrator) broadcast(room domain.RoomID, ev core.Event) {
	frame, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", ev.Type).Msg("encode event")
		return
	}
	res := o.Presence.Broadcast(room, frame)
	for _, conn := range res.Dropped {
		o.onBackPressure(conn, ev)
	}
}

// DeliverTimeouts is the sink for deliveries produced by ring timeouts.
func (o *Orchestrator) DeliverTimeouts(ds []app.Delivery) {
	o.Deliver(ds)
	for _, d := range ds {
		if d.Event.Type == core.EventCallFailed {
			o.Bus.Publish(d.Event)
		}
	}
}

func (o *Orchestrator) send(conn core.ConnID, ev core.Event) {
	o.Deliver([]app.Delivery{{Conns: []core.ConnID{conn}, Event: ev}})
}

func (o *Orchestrator) sendError(conn core.ConnID, err error) {
	o.send(conn, core.NewEvent(core.EventError, core.ErrorPayload{Reason: domain.ReasonOf(err)}))
}

func (o *Orchestrator) onBackPressure(conn core.ConnID, ev core.Event) {
	o.Bus.Publish(core.NewEvent(core.TopicDeliveryDropped, conn))
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(conn, ev) {
	case app.KickConnection:
		log.Warn().Str("module", "orch").Str("conn", string(conn)).Str("event", ev.Type).Msg("slow connection, kicking")
		o.Sessions.Cancel(conn)
	case app.DropFrame:
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Str("event", ev.Type).Msg("frame dropped")
	case app.MarkSlow, app.NoAction:
	}
}
