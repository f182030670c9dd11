package signal

import "github.com/dkeye/voicechat/internal/core"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, core.NewEvent(core.EventPong, nil))
}
