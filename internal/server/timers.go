package server

import (
	"time"
)

// Countdown scheduling for the two buzzer windows. Timers are never
// cancelled; each callback captures the session's TimerVersion at schedule
// time and re-validates it when it fires. Any mutation that supersedes a
// running countdown (buzz, reset, unlock, new clue) bumps the version
// first, so a stale callback finds a mismatch and does nothing. A window
// configured as 0 seconds means unlimited and schedules no timer at all.

// startBuzzWindow broadcasts the countdown and schedules the no-buzz
// timeout for an opened buzzer.
func (s *Server) startBuzzWindow(gameID string, window BuzzWindow) {
	if window.Seconds <= 0 {
		return
	}

	s.broadcastToGame(gameID, "timer-start", TimerStartMessage{
		Seconds: window.Seconds,
		EndsAt:  window.TimerEnd.UnixMilli(),
	})

	time.AfterFunc(time.Duration(window.Seconds)*time.Second, func() {
		s.fireBuzzTimeout(gameID, window.Version)
	})
}

// fireBuzzTimeout runs when the buzz window elapses. If nobody buzzed and
// the captured version is still current, the buzzer auto-locks and the
// answer auto-reveals; otherwise the timer was superseded and nothing is
// broadcast.
func (s *Server) fireBuzzTimeout(gameID string, version uint64) bool {
	selected, expired := s.store.ExpireBuzzWindow(gameID, version)
	if !expired {
		return false
	}

	s.broadcastToGame(gameID, "timer-end", struct{}{})
	s.broadcastToGame(gameID, "buzzer-locked", struct{}{})
	if selected != nil {
		s.broadcastToGame(gameID, "answer-revealed", AnswerRevealedMessage{
			Category: selected.Category,
			Clue:     selected.Clue,
		})
	}
	return true
}

// startAnswerWindow broadcasts the countdown and schedules the answer
// timeout for a buzzed-in player.
func (s *Server) startAnswerWindow(gameID string, res BuzzResult) {
	if res.AnswerSeconds <= 0 {
		return
	}

	s.broadcastToGame(gameID, "timer-start", TimerStartMessage{
		Seconds: res.AnswerSeconds,
		EndsAt:  res.TimerEnd.UnixMilli(),
	})

	time.AfterFunc(time.Duration(res.AnswerSeconds)*time.Second, func() {
		s.fireAnswerTimeout(gameID, res.Version)
	})
}

// fireAnswerTimeout runs when the answer window elapses. The countdown ends
// on screens but the clue does not auto-advance; the host resolves it.
func (s *Server) fireAnswerTimeout(gameID string, version uint64) bool {
	if !s.store.ExpireAnswerWindow(gameID, version) {
		return false
	}

	s.broadcastToGame(gameID, "timer-end", struct{}{})
	return true
}
