package game

import (
	"card-czar/internal/deck"
)

// Start begins the next round: waiting players are promoted, hands are
// topped up to twelve cards, a black card is drawn, and the czar goes on
// the clock to reveal it. With fewer than three players the round aborts
// and the round counter stays put.
func (i *Instance) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.startLocked()
}

func (i *Instance) startLocked() {
	for _, w := range i.waitingRoom {
		if i.players[w.ID] == nil {
			i.seatPlayerLocked(w.ID, w.Name)
		}
	}
	i.waitingRoom = nil

	if len(i.players) < minPlayers {
		i.isStarted = false
		i.log.Info().Int("players", len(i.players)).Msg("round_not_started_too_few_players")
		i.playSoundLocked("ding%20ding.ogg")
		i.syncLocked()
		return
	}

	i.round++
	if i.czar == "" || i.players[i.czar] == nil {
		i.czar = i.order[0]
	}
	for _, id := range i.order {
		p := i.players[id]
		if p.WantsNewHand {
			for _, c := range p.Cards {
				if c != nil {
					i.whiteDiscard = append(i.whiteDiscard, *c)
				}
			}
			p.Cards = p.Cards[:0]
			p.WantsNewHand = false
			i.log.Info().Str("player", p.Name).Msg("hand_dumped")
		}
		p.DumpedThisRound = false
		i.fillHandLocked(p)
	}
	i.currentBlackCard = i.drawBlackLocked()
	i.showBlack = false
	i.currentPreviewResponse = 0
	i.winner = nil
	i.isStarted = true
	i.armInactivityLocked(i.czar, idleRevealBlack)
	i.log.Info().Int("round", i.round).Str("czar", i.czar).Int("players", len(i.players)).Msg("round_start")
	i.playSoundLocked("gameStart.ogg")
	i.syncLocked()
}

// fillHandLocked backfills the slots emptied by played cards in original
// slot order, drops any slot the pile could not refill, then tops the hand
// back up to exactly twelve cards.
func (i *Instance) fillHandLocked(p *Player) {
	for idx := range p.Cards {
		if p.Cards[idx] == nil {
			p.Cards[idx] = i.drawWhiteLocked()
		}
	}
	kept := p.Cards[:0]
	for _, c := range p.Cards {
		if c != nil {
			kept = append(kept, c)
		}
	}
	p.Cards = kept
	for len(p.Cards) < handSize {
		c := i.drawWhiteLocked()
		if c == nil {
			i.log.Warn().Str("player", p.Name).Int("cards", len(p.Cards)).Msg("short_hand_white_piles_exhausted")
			break
		}
		p.Cards = append(p.Cards, c)
	}
}

func (i *Instance) drawWhiteLocked() *deck.Card {
	if len(i.whiteDeck) == 0 && len(i.whiteDiscard) > 0 {
		i.whiteDeck = i.whiteDiscard
		i.whiteDiscard = nil
		i.shuffleLocked(i.whiteDeck)
	}
	if len(i.whiteDeck) == 0 {
		i.rebuildWhiteLocked()
	}
	if len(i.whiteDeck) == 0 {
		return nil
	}
	c := i.whiteDeck[len(i.whiteDeck)-1]
	i.whiteDeck = i.whiteDeck[:len(i.whiteDeck)-1]
	return &c
}

// rebuildWhiteLocked is the last-resort reshuffle: both white piles are
// empty, so the pile is rebuilt from original-deck cards not currently held
// by any player. Reissued cards may resemble ones already seen.
func (i *Instance) rebuildWhiteLocked() {
	held := map[string]bool{}
	for _, p := range i.players {
		for _, c := range p.Cards {
			if c != nil {
				held[c.ID] = true
			}
		}
		for _, c := range p.Selected {
			held[c.ID] = true
		}
	}
	for _, c := range i.original.White {
		if !held[c.ID] {
			i.whiteDeck = append(i.whiteDeck, c)
		}
	}
	i.shuffleLocked(i.whiteDeck)
	i.log.Warn().Int("cards", len(i.whiteDeck)).Msg("white_pile_rebuilt_from_original_deck")
}

// drawBlackLocked pops the next prompt. Unlike white cards, a black card
// moves to the discard the moment it is drawn.
func (i *Instance) drawBlackLocked() *deck.Card {
	if len(i.blackDeck) == 0 && len(i.blackDiscard) > 0 {
		i.blackDeck = i.blackDiscard
		i.blackDiscard = nil
		i.shuffleLocked(i.blackDeck)
	}
	if len(i.blackDeck) == 0 {
		i.blackDeck = append(i.blackDeck, i.original.Black...)
		i.shuffleLocked(i.blackDeck)
		i.log.Warn().Int("cards", len(i.blackDeck)).Msg("black_pile_rebuilt_from_original_deck")
	}
	if len(i.blackDeck) == 0 {
		i.log.Error().Msg("no_black_cards_available")
		return nil
	}
	c := i.blackDeck[len(i.blackDeck)-1]
	i.blackDeck = i.blackDeck[:len(i.blackDeck)-1]
	i.blackDiscard = append(i.blackDiscard, c)
	return &c
}

// ShowBlack reveals the prompt and puts every responder on the clock.
func (i *Instance) ShowBlack(userID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if userID != i.czar {
		i.sendErrorLocked(userID, "Only the czar can show the black card.")
		return
	}
	if !i.isStarted {
		i.sendErrorLocked(userID, "The round has not started.")
		return
	}
	i.showBlack = true
	i.cancelInactivityLocked(userID)
	for _, id := range i.order {
		if id != i.czar {
			i.armInactivityLocked(id, idleSubmitCards)
		}
	}
	i.syncLocked()
}

// ChooseCards moves the submitted cards from the player's hand into their
// selected set. Hand slots stay open rather than compacting, so unplayed
// cards hold their position until the next round's backfill.
func (i *Instance) ChooseCards(userID string, cardIDs []string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	p := i.players[userID]
	if p == nil {
		i.sendErrorLocked(userID, "You are not in this game.")
		return
	}
	if userID == i.czar {
		i.sendErrorLocked(userID, "The czar cannot play response cards.")
		return
	}
	if !i.isStarted || i.currentBlackCard == nil {
		i.sendErrorLocked(userID, "The round has not started.")
		return
	}
	if len(p.Selected) > 0 {
		i.sendErrorLocked(userID, "You have already played this round.")
		return
	}
	need := i.currentBlackCard.NumResponses
	if need == 0 {
		need = 1
	}
	ids := make([]string, 0, len(cardIDs))
	for _, id := range cardIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) != need {
		i.sendErrorLocked(userID, "Not enough cards picked!")
		return
	}
	slots := make([]int, 0, len(ids))
	for _, id := range ids {
		found := -1
		for idx, c := range p.Cards {
			if c != nil && c.ID == id && !containsInt(slots, idx) {
				found = idx
				break
			}
		}
		if found < 0 {
			i.sendErrorLocked(userID, "You can only play cards from your hand.")
			return
		}
		slots = append(slots, found)
	}
	for _, idx := range slots {
		p.Selected = append(p.Selected, *p.Cards[idx])
		p.Cards[idx] = nil
	}
	i.cancelInactivityLocked(userID)
	if i.allSubmittedLocked() {
		i.armInactivityLocked(i.czar, idleChooseWinner)
	}
	i.playSoundLocked("card_flick.ogg")
	i.syncLocked()
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func (i *Instance) allSubmittedLocked() bool {
	if len(i.order) < 2 {
		return false
	}
	for _, id := range i.order {
		if id == i.czar {
			continue
		}
		if len(i.players[id].Selected) == 0 {
			return false
		}
	}
	return true
}

func (i *Instance) submittedCountLocked() int {
	n := 0
	for _, id := range i.order {
		if id != i.czar && len(i.players[id].Selected) > 0 {
			n++
		}
	}
	return n
}

// PreviewResponse flips the czar's review pointer. Out-of-range indices are
// clamped rather than rejected.
func (i *Instance) PreviewResponse(userID string, index int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if userID != i.czar {
		i.sendErrorLocked(userID, "Only the czar can preview responses.")
		return
	}
	if index < 0 {
		index = 0
	}
	if n := i.submittedCountLocked(); n > 0 && index >= n {
		index = n - 1
	}
	i.currentPreviewResponse = index
	i.playSoundLocked("card_flick.ogg")
	i.syncLocked()
}

// ChooseWinner awards the trophy, publishes the winner snapshot, and after
// the configured delay soft-resets into the next round.
func (i *Instance) ChooseWinner(userID, targetID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if userID != i.czar {
		i.sendErrorLocked(userID, "Only the czar can choose a winner.")
		return
	}
	target := i.players[targetID]
	if target == nil {
		i.sendErrorLocked(userID, "That player is not in this game.")
		return
	}
	target.Trophies++
	snap := i.playerViewLocked(target, true)
	i.winner = &snap
	i.cancelInactivityLocked(userID)
	i.log.Info().Str("winner", target.Name).Int("trophies", target.Trophies).Int("round", i.round).Msg("winner_chosen")
	i.playSoundLocked("fanfare%20with%20pop.ogg")
	i.syncLocked()
	i.scheduleRestartLocked()
}

// DumpHand flags the hand for replacement at the next round start. One dump
// per player per round.
func (i *Instance) DumpHand(userID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	p := i.players[userID]
	if p == nil {
		i.sendErrorLocked(userID, "You are not in this game.")
		return
	}
	if userID == i.czar {
		i.sendErrorLocked(userID, "The czar cannot dump their hand.")
		return
	}
	if p.DumpedThisRound {
		i.sendErrorLocked(userID, "You can only dump your hand once per round.")
		return
	}
	p.WantsNewHand = true
	p.DumpedThisRound = true
	i.syncLocked()
}

// softResetLocked clears round-scoped state and rotates the czar. Selected
// cards return to the white discard; the black card already lives in the
// black discard from draw time.
func (i *Instance) softResetLocked() {
	for _, p := range i.players {
		i.whiteDiscard = append(i.whiteDiscard, p.Selected...)
		p.Selected = p.Selected[:0]
	}
	i.currentPreviewResponse = 0
	i.showBlack = false
	i.winner = nil
	i.isStarted = false
	i.currentBlackCard = nil
	i.advanceCzarLocked()
	i.cancelAllInactivityLocked()
	i.cancelRestartLocked()
}

func (i *Instance) advanceCzarLocked() {
	if len(i.order) == 0 {
		i.czar = ""
		return
	}
	for idx, id := range i.order {
		if id == i.czar {
			i.czar = i.order[(idx+1)%len(i.order)]
			return
		}
	}
	i.czar = i.order[0]
}

// ResetHard wipes the table: all players, waiting room, and preserved
// standing are dropped and the supplied deck replaces the original.
func (i *Instance) ResetHard(d deck.Deck) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cancelAllTimersLocked()
	i.players = map[string]*Player{}
	i.order = nil
	i.waitingRoom = nil
	i.persistentScores = map[string]int{}
	i.persistentPositions = map[string]int{}
	i.czar = ""
	i.round = 0
	i.currentBlackCard = nil
	i.currentPreviewResponse = 0
	i.showBlack = false
	i.winner = nil
	i.isStarted = false
	i.installDeckLocked(d)
	i.log.Info().Msg("hard_reset")
	i.syncLocked()
}
