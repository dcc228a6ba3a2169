package service

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/wricardo/boxcast/game/engine"
	"github.com/wricardo/boxcast/game/session"
)

// handleMessage parses one inbound frame. Malformed frames are logged and
// dropped; the connection stays open.
func (s *boxService) handleMessage(h session.Handle, raw []byte) {
	id, ok := s.sessions.Lookup(h)
	if !ok {
		s.dropped++
		s.logger.Debug("Dropping message from unregistered viewer")
		return
	}

	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.dropped++
		s.logger.Warn("Error parsing message", "user_id", id, "err", err)
		return
	}

	switch msg.Action {
	case ActionChat:
		s.logger.Debug("Chat received", "user_id", id, "text", msg.Text)
		s.handleChat(fmt.Sprintf("User %d: %s", id, msg.Text), msg.Text, id)
	default:
		s.dropped++
		s.logger.Debug("Ignoring message", "user_id", id, "action", msg.Action)
	}
}

// handleChat broadcasts the chat line first, then applies the command the
// text names, if any
func (s *boxService) handleChat(line, text string, sender any) {
	s.broadcastChat(line, sender)

	switch text {
	case CommandJump:
		s.setWorld(engine.Jump(s.world, s.cfg.JumpOffset))
		s.broadcastState()
	case CommandRun:
		s.startRun()
	case CommandStress:
		if s.cfg.Variant != engine.VariantBoxes {
			return
		}
		s.startStress()
	}
}
