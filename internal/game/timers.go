package game

import "time"

// Timers re-enter the state machine exactly like messages: each callback
// takes the instance lock, re-resolves the player by id, and re-checks its
// precondition, since an intervening message may have resolved it already.
// The sequence number rejects callbacks from superseded or canceled timers.

type playerTimer struct {
	timer *time.Timer
	seq   uint64
}

type idleReason int

const (
	idleRevealBlack idleReason = iota
	idleSubmitCards
	idleChooseWinner
)

func (r idleReason) String() string {
	switch r {
	case idleRevealBlack:
		return "reveal_black"
	case idleSubmitCards:
		return "submit_cards"
	case idleChooseWinner:
		return "choose_winner"
	}
	return "unknown"
}

func (i *Instance) nextTimerSeqLocked() uint64 {
	i.timerSeq++
	return i.timerSeq
}

func (i *Instance) armDisconnectLocked(userID string) {
	if old := i.disconnect[userID]; old != nil {
		old.timer.Stop()
	}
	seq := i.nextTimerSeqLocked()
	pt := &playerTimer{seq: seq}
	pt.timer = time.AfterFunc(i.cfg.DisconnectGrace, func() {
		i.disconnectExpired(userID, seq)
	})
	i.disconnect[userID] = pt
}

func (i *Instance) disconnectExpired(userID string, seq uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	cur := i.disconnect[userID]
	if cur == nil || cur.seq != seq {
		return
	}
	delete(i.disconnect, userID)
	p := i.players[userID]
	if p == nil || p.Connected {
		return
	}
	i.log.Info().Str("player", p.Name).Msg("kicked_disconnect_grace_expired")
	i.removePlayerLocked(userID)
}

// armInactivityLocked puts one player on the clock. At most one inactivity
// timer is live per player; arming supersedes any prior one.
func (i *Instance) armInactivityLocked(userID string, reason idleReason) {
	if i.cfg.IdleTimeout <= 0 {
		return
	}
	if old := i.inactivity[userID]; old != nil {
		old.timer.Stop()
	}
	seq := i.nextTimerSeqLocked()
	pt := &playerTimer{seq: seq}
	pt.timer = time.AfterFunc(i.cfg.IdleTimeout, func() {
		i.idleExpired(userID, reason, seq)
	})
	i.inactivity[userID] = pt
}

func (i *Instance) idleExpired(userID string, reason idleReason, seq uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	cur := i.inactivity[userID]
	if cur == nil || cur.seq != seq {
		return
	}
	delete(i.inactivity, userID)
	p := i.players[userID]
	if p == nil || !i.idlePreconditionHoldsLocked(userID, reason) {
		return
	}
	i.log.Info().Str("player", p.Name).Stringer("reason", reason).Msg("kicked_inactive")
	i.removePlayerLocked(userID)
}

// idlePreconditionHoldsLocked re-checks whether the awaited action is still
// outstanding at fire time.
func (i *Instance) idlePreconditionHoldsLocked(userID string, reason idleReason) bool {
	switch reason {
	case idleRevealBlack:
		return i.isStarted && !i.showBlack && i.czar == userID
	case idleSubmitCards:
		p := i.players[userID]
		return i.isStarted && i.showBlack && i.winner == nil &&
			i.czar != userID && p != nil && len(p.Selected) == 0
	case idleChooseWinner:
		return i.isStarted && i.showBlack && i.winner == nil &&
			i.czar == userID && i.allSubmittedLocked()
	}
	return false
}

func (i *Instance) cancelInactivityLocked(userID string) {
	if pt := i.inactivity[userID]; pt != nil {
		pt.timer.Stop()
		delete(i.inactivity, userID)
	}
}

func (i *Instance) cancelDisconnectLocked(userID string) {
	if pt := i.disconnect[userID]; pt != nil {
		pt.timer.Stop()
		delete(i.disconnect, userID)
	}
}

func (i *Instance) cancelAllInactivityLocked() {
	for id, pt := range i.inactivity {
		pt.timer.Stop()
		delete(i.inactivity, id)
	}
}

func (i *Instance) cancelAllTimersLocked() {
	i.cancelAllInactivityLocked()
	for id, pt := range i.disconnect {
		pt.timer.Stop()
		delete(i.disconnect, id)
	}
	i.cancelRestartLocked()
}

// scheduleRestartLocked arms the fixed post-winner delay before the soft
// reset and next round.
func (i *Instance) scheduleRestartLocked() {
	if i.resetTimer != nil {
		i.resetTimer.Stop()
	}
	seq := i.nextTimerSeqLocked()
	i.resetSeq = seq
	i.resetTimer = time.AfterFunc(i.cfg.WinnerDelay, func() {
		i.restartExpired(seq)
	})
}

func (i *Instance) restartExpired(seq uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.resetSeq != seq {
		return
	}
	i.resetTimer = nil
	i.resetSeq = 0
	i.softResetLocked()
	i.startLocked()
}

func (i *Instance) cancelRestartLocked() {
	if i.resetTimer != nil {
		i.resetTimer.Stop()
		i.resetTimer = nil
	}
	i.resetSeq = 0
}
