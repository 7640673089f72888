package game

import (
	"card-czar/internal/deck"
)

// Player is one seated participant. Cards may contain nil entries: slots
// left open by played cards, backfilled in place at the next round start so
// unplayed cards keep a stable visual position.
type Player struct {
	ID              string
	Name            string
	Trophies        int
	Cards           []*deck.Card
	Selected        []deck.Card
	Position        int
	Connected       bool
	DisconnectTime  int64
	WantsNewHand    bool
	DumpedThisRound bool
}

// Join seats a user, or queues them in the waiting room while a round is in
// progress. Joining twice is a desync, not an error: it forces a re-push.
func (i *Instance) Join(userID, name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.players[userID] != nil {
		i.syncOneLocked(userID)
		return
	}
	for _, w := range i.waitingRoom {
		if w.ID == userID {
			i.syncOneLocked(userID)
			return
		}
	}
	if len(i.players)+len(i.waitingRoom) > maxSeats-1 {
		i.sendErrorLocked(userID, "This game is full, please try again later!")
		return
	}
	if i.isStarted {
		i.waitingRoom = append(i.waitingRoom, WaitingUser{ID: userID, Name: name})
		i.log.Info().Str("player", name).Msg("joined_waiting_room")
	} else {
		i.seatPlayerLocked(userID, name)
		i.log.Info().Str("player", name).Msg("joined_game")
	}
	i.playSoundLocked("playerJoin.ogg")
	i.syncLocked()
}

func (i *Instance) seatPlayerLocked(userID, name string) {
	p := &Player{
		ID:        userID,
		Name:      name,
		Cards:     []*deck.Card{},
		Selected:  []deck.Card{},
		Connected: i.conns[userID] != nil,
	}
	if trophies, ok := i.persistentScores[userID]; ok {
		p.Trophies = trophies
	}
	p.Position = i.choosePositionLocked(userID)
	i.players[userID] = p
	i.order = append(i.order, userID)
}

// choosePositionLocked restores the player's old seat when it is still free,
// otherwise picks uniformly among free seats.
func (i *Instance) choosePositionLocked(userID string) int {
	taken := map[int]bool{}
	for _, p := range i.players {
		taken[p.Position] = true
	}
	if pos, ok := i.persistentPositions[userID]; ok && !taken[pos] {
		return pos
	}
	free := make([]int, 0, maxSeats)
	for seat := 0; seat < maxSeats; seat++ {
		if !taken[seat] {
			free = append(free, seat)
		}
	}
	if len(free) == 0 {
		return 0
	}
	return free[i.rng.Intn(len(free))]
}

// Leave removes the requesting player, or their waiting-room entry.
func (i *Instance) Leave(userID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.players[userID] == nil {
		for idx, w := range i.waitingRoom {
			if w.ID == userID {
				i.waitingRoom = append(i.waitingRoom[:idx], i.waitingRoom[idx+1:]...)
				i.syncLocked()
				return
			}
		}
		return
	}
	i.log.Info().Str("player", i.players[userID].Name).Msg("player_left")
	i.removePlayerLocked(userID)
}

// removePlayerLocked takes a player out of the game: standing is preserved
// for a rejoin, their cards return to the discard, and their timers die with
// them. Losing the czar or dropping below the minimum forces a fresh round.
func (i *Instance) removePlayerLocked(userID string) {
	p := i.players[userID]
	if p == nil {
		return
	}
	i.persistentScores[userID] = p.Trophies
	i.persistentPositions[userID] = p.Position
	for _, c := range p.Cards {
		if c != nil {
			i.whiteDiscard = append(i.whiteDiscard, *c)
		}
	}
	i.whiteDiscard = append(i.whiteDiscard, p.Selected...)
	i.cancelInactivityLocked(userID)
	i.cancelDisconnectLocked(userID)
	delete(i.players, userID)
	for idx, id := range i.order {
		if id == userID {
			i.order = append(i.order[:idx], i.order[idx+1:]...)
			break
		}
	}
	wasCzar := i.czar == userID
	if wasCzar || len(i.players) < minPlayers {
		i.softResetLocked()
		i.startLocked()
		return
	}
	i.syncLocked()
}
