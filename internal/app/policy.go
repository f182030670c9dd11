package app

import "github.com/dkeye/voicechat/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickConnection
	DropFrame
)

type Policy interface {
	OnBackPressure(conn core.ConnID, ev core.Event) BackpressureAction
}

// SimplePolicy drops a connection that cannot keep up.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.ConnID, core.Event) BackpressureAction {
	return KickConnection
}

// LenientPolicy tolerates dropped presence frames and kicks only when
// a message or call event cannot be delivered.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(_ core.ConnID, ev core.Event) BackpressureAction {
	switch ev.Type {
	case core.EventUserConnected, core.EventUserDisconnected:
		return DropFrame
	default:
		return KickConnection
	}
}
