package service

import (
	"github.com/goccy/go-json"

	"github.com/wricardo/boxcast/game/engine"
	"github.com/wricardo/boxcast/game/session"
)

// stateMessage renders the world in the configured variant. Stress
// telemetry is attached only while stress is active.
func (s *boxService) stateMessage() any {
	if s.cfg.Variant == engine.VariantBoy {
		b := s.world.Boxes[0]
		return BoyUpdate{Action: ActionUpdateBoy, X: b.X, Y: b.Y, Color: b.Color, Size: b.Size}
	}

	msg := BoxesUpdate{Action: ActionUpdateBoxes, Boxes: s.world.Boxes}
	if e := s.effect; e != nil && e.kind == EffectStress {
		frame := e.frame
		ts := s.loop.Now().UnixMilli()
		msg.Frame = &frame
		msg.Timestamp = &ts
	}
	return msg
}

func (s *boxService) broadcastState() {
	s.broadcast(s.stateMessage())
}

func (s *boxService) broadcastChat(text string, sender any) {
	s.broadcast(ChatMessage{Action: ActionChat, Text: text, UserID: sender})
}

// broadcast serializes msg once and sends it to every session. A failed
// send is logged and skipped; the rest of the fan-out continues.
func (s *boxService) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to encode broadcast", "err", err)
		return
	}
	s.broadcasts++

	s.sessions.ForEach(func(h session.Handle, id int) {
		if err := h.Send(data); err != nil {
			s.sendFailures++
			s.logger.Warn("Failed to send to viewer", "user_id", id, "err", err)
		}
	})
}

func (s *boxService) sendTo(h session.Handle, id int, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to encode message", "user_id", id, "err", err)
		return
	}
	if err := h.Send(data); err != nil {
		s.sendFailures++
		s.logger.Warn("Failed to send to viewer", "user_id", id, "err", err)
	}
}
