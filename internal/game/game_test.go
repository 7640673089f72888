package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"card-czar/internal/deck"
)

type outMsg struct {
	path string
	data any
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []outMsg
}

func (f *fakeSender) Send(path string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, outMsg{path: path, data: data})
}

func (f *fakeSender) lastError() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for n := len(f.msgs) - 1; n >= 0; n-- {
		if f.msgs[n].path == "error" {
			return f.msgs[n].data.(string), true
		}
	}
	return "", false
}

func (f *fakeSender) sawSound(asset string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.path == "play-sound" && m.data == asset {
			return true
		}
	}
	return false
}

func (f *fakeSender) lastView() (View, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for n := len(f.msgs) - 1; n >= 0; n-- {
		if f.msgs[n].path == "sync-game" {
			return f.msgs[n].data.(View), true
		}
	}
	return View{}, false
}

func testDeck(black, white int) deck.Deck {
	var d deck.Deck
	for n := 0; n < black; n++ {
		d.Black = append(d.Black, deck.Card{ID: fmt.Sprintf("b%d", n), Text: fmt.Sprintf("prompt %d", n)})
	}
	for n := 0; n < white; n++ {
		d.White = append(d.White, deck.Card{ID: fmt.Sprintf("w%d", n), Text: fmt.Sprintf("response %d", n)})
	}
	return d
}

// quietConfig disables every timer so state-machine tests stay
// single-threaded.
func quietConfig() Config {
	return Config{DisconnectGrace: time.Hour, IdleTimeout: 0, WinnerDelay: time.Hour}
}

func seatThree(t *testing.T, i *Instance) map[string]*fakeSender {
	t.Helper()
	senders := map[string]*fakeSender{}
	for _, id := range []string{"p1", "p2", "p3"} {
		s := &fakeSender{}
		senders[id] = s
		i.Connect(id, s)
		i.Join(id, "Player "+id)
	}
	return senders
}

func handIDs(i *Instance, playerID string, n int) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	ids := []string{}
	for _, c := range i.players[playerID].Cards {
		if c != nil {
			ids = append(ids, c.ID)
			if len(ids) == n {
				break
			}
		}
	}
	return ids
}

func assertConservation(t *testing.T, i *Instance, d deck.Deck) {
	t.Helper()
	i.mu.Lock()
	defer i.mu.Unlock()
	seen := map[string]int{}
	for _, c := range i.blackDeck {
		seen[c.ID]++
	}
	for _, c := range i.blackDiscard {
		seen[c.ID]++
	}
	for _, c := range i.whiteDeck {
		seen[c.ID]++
	}
	for _, c := range i.whiteDiscard {
		seen[c.ID]++
	}
	for _, p := range i.players {
		for _, c := range p.Cards {
			if c != nil {
				seen[c.ID]++
			}
		}
		for _, c := range p.Selected {
			seen[c.ID]++
		}
	}
	for _, c := range d.Black {
		if seen[c.ID] != 1 {
			t.Fatalf("black card %s appears %d times, want exactly 1", c.ID, seen[c.ID])
		}
	}
	for _, c := range d.White {
		if seen[c.ID] != 1 {
			t.Fatalf("white card %s appears %d times, want exactly 1", c.ID, seen[c.ID])
		}
	}
}

func TestJoinSeatsDistinctPositionsAndRejectsEleventh(t *testing.T) {
	d := testDeck(5, 40)
	i := NewInstance("join", d, quietConfig(), false)
	senders := map[string]*fakeSender{}
	for n := 0; n < 10; n++ {
		id := fmt.Sprintf("u%d", n)
		s := &fakeSender{}
		senders[id] = s
		i.Connect(id, s)
		i.Join(id, "User "+id)
	}
	if len(i.players) != 10 {
		t.Fatalf("players = %d, want 10", len(i.players))
	}
	positions := map[int]bool{}
	for _, p := range i.players {
		if positions[p.Position] {
			t.Fatalf("duplicate position %d", p.Position)
		}
		positions[p.Position] = true
	}

	extra := &fakeSender{}
	i.Connect("u10", extra)
	i.Join("u10", "User u10")
	if len(i.players) != 10 {
		t.Fatalf("players = %d after full join, want 10", len(i.players))
	}
	if msg, ok := extra.lastError(); !ok || msg == "" {
		t.Fatal("expected error for joining a full game")
	}
}

func TestJoinTwiceIsResyncNotError(t *testing.T) {
	i := NewInstance("rejoin", testDeck(5, 40), quietConfig(), false)
	s := &fakeSender{}
	i.Connect("p1", s)
	i.Join("p1", "Player p1")
	i.Join("p1", "Player p1")
	if _, ok := s.lastError(); ok {
		t.Fatal("double join should not produce an error")
	}
	if len(i.players) != 1 {
		t.Fatalf("players = %d, want 1", len(i.players))
	}
	if _, ok := s.lastView(); !ok {
		t.Fatal("double join should force a re-push")
	}
}

func TestStartAbortsBelowThreePlayers(t *testing.T) {
	d := testDeck(5, 40)
	i := NewInstance("abort", d, quietConfig(), false)
	for _, id := range []string{"p1", "p2"} {
		s := &fakeSender{}
		i.Connect(id, s)
		i.Join(id, "Player "+id)
	}
	i.Start()
	if i.isStarted {
		t.Fatal("round must not start with two players")
	}
	if i.round != 0 {
		t.Fatalf("round = %d, want 0 on aborted start", i.round)
	}
	if i.currentBlackCard != nil {
		t.Fatal("no black card may be drawn on aborted start")
	}
}

func TestStartDealsTwelveAndElectsCzar(t *testing.T) {
	d := testDeck(5, 40)
	i := NewInstance("deal", d, quietConfig(), false)
	senders := seatThree(t, i)
	i.Start()

	if !i.isStarted {
		t.Fatal("round did not start")
	}
	if i.round != 1 {
		t.Fatalf("round = %d, want 1", i.round)
	}
	if i.czar != "p1" {
		t.Fatalf("czar = %q, want first joiner p1", i.czar)
	}
	if i.currentBlackCard == nil {
		t.Fatal("no black card drawn")
	}
	for id, p := range i.players {
		if len(p.Cards) != handSize {
			t.Fatalf("player %s hand = %d cards, want %d", id, len(p.Cards), handSize)
		}
	}
	assertConservation(t, i, d)

	view, ok := senders["p2"].lastView()
	if !ok {
		t.Fatal("p2 received no sync")
	}
	if len(view.Players["p2"].Cards) != handSize {
		t.Fatalf("p2 sees %d own cards, want %d", len(view.Players["p2"].Cards), handSize)
	}
	if len(view.Players["p1"].Cards) != 0 {
		t.Fatal("p2 must not see p1's hand")
	}
}

func TestDebugModeRevealsAllHands(t *testing.T) {
	i := NewInstance("debug", testDeck(5, 40), quietConfig(), true)
	senders := seatThree(t, i)
	i.Start()
	view, ok := senders["p2"].lastView()
	if !ok {
		t.Fatal("p2 received no sync")
	}
	if len(view.Players["p1"].Cards) != handSize {
		t.Fatal("debug mode should reveal every hand")
	}
}

func TestJoinDuringRoundEntersWaitingRoom(t *testing.T) {
	d := testDeck(5, 60)
	i := NewInstance("waiting", d, quietConfig(), false)
	seatThree(t, i)
	i.Start()

	s4 := &fakeSender{}
	i.Connect("p4", s4)
	i.Join("p4", "Player p4")
	if i.players["p4"] != nil {
		t.Fatal("p4 must wait while the round is active")
	}
	if len(i.waitingRoom) != 1 || i.waitingRoom[0].ID != "p4" {
		t.Fatalf("waitingRoom = %+v, want p4", i.waitingRoom)
	}

	i.Start()
	if i.players["p4"] == nil {
		t.Fatal("p4 not promoted at round start")
	}
	if len(i.waitingRoom) != 0 {
		t.Fatal("waiting room not drained")
	}
	if len(i.players["p4"].Cards) != handSize {
		t.Fatalf("promoted player dealt %d cards, want %d", len(i.players["p4"].Cards), handSize)
	}
	assertConservation(t, i, d)
}

func TestChooseCardsCardinalityMismatchRejected(t *testing.T) {
	d := testDeck(5, 40)
	i := NewInstance("cardinality", d, quietConfig(), false)
	senders := seatThree(t, i)
	i.Start()
	i.ShowBlack("p1")

	ids := handIDs(i, "p2", 2)
	i.ChooseCards("p2", ids)
	if _, ok := senders["p2"].lastError(); !ok {
		t.Fatal("expected cardinality error")
	}
	if len(i.players["p2"].Selected) != 0 {
		t.Fatal("selected must stay unchanged on rejection")
	}
	assertConservation(t, i, d)
}

func TestChooseCardsMovesCardsAndLeavesSlotsOpen(t *testing.T) {
	d := testDeck(5, 40)
	i := NewInstance("choose", d, quietConfig(), false)
	senders := seatThree(t, i)
	i.Start()
	i.ShowBlack("p1")

	ids := handIDs(i, "p2", 1)
	i.ChooseCards("p2", ids)
	p2 := i.players["p2"]
	if len(p2.Selected) != 1 || p2.Selected[0].ID != ids[0] {
		t.Fatalf("selected = %+v, want card %s", p2.Selected, ids[0])
	}
	open := 0
	for _, c := range p2.Cards {
		if c == nil {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("open hand slots = %d, want 1", open)
	}
	assertConservation(t, i, d)

	i.ChooseCards("p2", handIDs(i, "p2", 1))
	if msg, _ := senders["p2"].lastError(); msg != "You have already played this round." {
		t.Fatalf("duplicate submission error = %q", msg)
	}
}

func TestChooseCardsRejectsForeignCards(t *testing.T) {
	d := testDeck(5, 40)
	i := NewInstance("foreign", d, quietConfig(), false)
	senders := seatThree(t, i)
	i.Start()
	i.ShowBlack("p1")

	i.ChooseCards("p2", []string{"not-a-card"})
	if _, ok := senders["p2"].lastError(); !ok {
		t.Fatal("expected error for card not in hand")
	}
	if len(i.players["p2"].Selected) != 0 {
		t.Fatal("selected must stay unchanged")
	}
}

func TestCzarOnlyActionsRejected(t *testing.T) {
	d := testDeck(5, 40)
	i := NewInstance("czar-only", d, quietConfig(), false)
	senders := seatThree(t, i)
	i.Start()

	i.ShowBlack("p2")
	if i.showBlack {
		t.Fatal("non-czar revealed the black card")
	}
	if _, ok := senders["p2"].lastError(); !ok {
		t.Fatal("expected error for non-czar show-black")
	}

	i.PreviewResponse("p3", 1)
	if i.currentPreviewResponse != 0 {
		t.Fatal("non-czar changed the preview index")
	}
	if _, ok := senders["p3"].lastError(); !ok {
		t.Fatal("expected error for non-czar preview")
	}

	i.ChooseWinner("p2", "p3")
	if i.players["p3"].Trophies != 0 {
		t.Fatal("non-czar awarded a trophy")
	}
	if i.winner != nil {
		t.Fatal("non-czar set a winner")
	}
}

func TestPreviewResponseClamps(t *testing.T) {
	i := NewInstance("preview", testDeck(5, 40), quietConfig(), false)
	seatThree(t, i)
	i.Start()
	i.ShowBlack("p1")
	i.ChooseCards("p2", handIDs(i, "p2", 1))

	i.PreviewResponse("p1", 5)
	if i.currentPreviewResponse != 0 {
		t.Fatalf("preview index = %d, want clamp to 0 with one submission", i.currentPreviewResponse)
	}
	i.PreviewResponse("p1", -3)
	if i.currentPreviewResponse != 0 {
		t.Fatalf("preview index = %d, want 0 for negative input", i.currentPreviewResponse)
	}
}

func TestChooseWinnerAwardsTrophyAndRotatesCzar(t *testing.T) {
	d := testDeck(5, 60)
	cfg := Config{DisconnectGrace: time.Hour, IdleTimeout: 0, WinnerDelay: 30 * time.Millisecond}
	i := NewInstance("winner", d, cfg, false)
	senders := seatThree(t, i)
	i.Start()
	i.ShowBlack("p1")
	i.ChooseCards("p2", handIDs(i, "p2", 1))
	i.ChooseCards("p3", handIDs(i, "p3", 1))

	i.ChooseWinner("p1", "p2")
	i.mu.Lock()
	if i.players["p2"].Trophies != 1 {
		i.mu.Unlock()
		t.Fatalf("p2 trophies = %d, want 1", i.players["p2"].Trophies)
	}
	if i.winner == nil || i.winner.ID != "p2" {
		i.mu.Unlock()
		t.Fatal("winner snapshot not published")
	}
	i.mu.Unlock()
	if !senders["p3"].sawSound("fanfare%20with%20pop.ogg") {
		t.Fatal("fanfare not broadcast")
	}

	time.Sleep(300 * time.Millisecond)

	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.isStarted {
		t.Fatal("next round did not start after the winner delay")
	}
	if i.round != 2 {
		t.Fatalf("round = %d, want 2", i.round)
	}
	if i.czar != "p2" {
		t.Fatalf("czar = %q, want rotation to p2", i.czar)
	}
	if i.winner != nil {
		t.Fatal("winner not cleared for the new round")
	}
	for id, p := range i.players {
		if len(p.Selected) != 0 {
			t.Fatalf("player %s still has selected cards", id)
		}
		if len(p.Cards) != handSize {
			t.Fatalf("player %s hand = %d, want %d", id, len(p.Cards), handSize)
		}
	}
}

func TestRoundCounterDoesNotIncrementOnAbort(t *testing.T) {
	i := NewInstance("counter", testDeck(5, 60), quietConfig(), false)
	seatThree(t, i)
	i.Start()
	if i.round != 1 {
		t.Fatalf("round = %d, want 1", i.round)
	}
	i.Leave("p3")
	// Dropping to two players forces a reset and an aborted restart.
	if i.isStarted {
		t.Fatal("game should be stopped with two players")
	}
	if i.round != 1 {
		t.Fatalf("round = %d after aborted restart, want 1", i.round)
	}
}

func TestDumpHandOncePerRoundAndReplacedNextRound(t *testing.T) {
	d := testDeck(5, 60)
	i := NewInstance("dump", d, quietConfig(), false)
	senders := seatThree(t, i)
	i.Start()

	before := handIDs(i, "p2", handSize)
	i.DumpHand("p2")
	if _, ok := senders["p2"].lastError(); ok {
		t.Fatal("first dump should succeed")
	}
	i.DumpHand("p2")
	if msg, _ := senders["p2"].lastError(); msg != "You can only dump your hand once per round." {
		t.Fatalf("second dump error = %q", msg)
	}

	i.Start()
	after := handIDs(i, "p2", handSize)
	if len(after) != handSize {
		t.Fatalf("replacement hand = %d cards, want %d", len(after), handSize)
	}
	old := map[string]bool{}
	for _, id := range before {
		old[id] = true
	}
	for _, id := range after {
		if old[id] {
			t.Fatalf("card %s survived a hand dump", id)
		}
	}
	if i.players["p2"].DumpedThisRound {
		t.Fatal("dump flag must reset at round start")
	}
	assertConservation(t, i, d)
}

func TestDumpHandRejectedForCzar(t *testing.T) {
	i := NewInstance("dump-czar", testDeck(5, 60), quietConfig(), false)
	senders := seatThree(t, i)
	i.Start()
	i.DumpHand("p1")
	if _, ok := senders["p1"].lastError(); !ok {
		t.Fatal("czar dump should be rejected")
	}
}

func TestLeaveReturnsCardsAndPreservesStanding(t *testing.T) {
	d := testDeck(5, 60)
	i := NewInstance("leave", d, quietConfig(), false)
	seatThree(t, i)
	i.Start()

	i.players["p3"].Trophies = 2
	oldPos := i.players["p3"].Position
	i.Leave("p3")
	if i.players["p3"] != nil {
		t.Fatal("p3 still seated after leaving")
	}
	if i.persistentScores["p3"] != 2 || i.persistentPositions["p3"] != oldPos {
		t.Fatal("standing not preserved on leave")
	}

	// Rejoin in the lobby restores trophies and the old seat.
	i.Join("p3", "Player p3")
	p3 := i.players["p3"]
	if p3 == nil {
		t.Fatal("p3 could not rejoin")
	}
	if p3.Trophies != 2 {
		t.Fatalf("trophies = %d after rejoin, want 2", p3.Trophies)
	}
	if p3.Position != oldPos {
		t.Fatalf("position = %d after rejoin, want %d", p3.Position, oldPos)
	}
	assertConservation(t, i, d)
}

func TestCzarLeavingForcesReset(t *testing.T) {
	i := NewInstance("czar-leave", testDeck(5, 80), quietConfig(), false)
	seatThree(t, i)
	s4 := &fakeSender{}
	i.Connect("p4", s4)
	i.Join("p4", "Player p4")
	i.Start()
	if i.czar != "p1" {
		t.Fatalf("czar = %q, want p1", i.czar)
	}

	i.Leave("p1")
	// Three players remain, so the game restarts with a new czar.
	if !i.isStarted {
		t.Fatal("game should restart with three remaining players")
	}
	if i.czar == "p1" || i.players[i.czar] == nil {
		t.Fatalf("czar = %q, want a seated replacement", i.czar)
	}
}

func TestHardResetClearsEverything(t *testing.T) {
	i := NewInstance("hard", testDeck(5, 60), quietConfig(), false)
	seatThree(t, i)
	i.Start()

	fresh := testDeck(3, 20)
	i.ResetHard(fresh)
	if len(i.players) != 0 || len(i.waitingRoom) != 0 {
		t.Fatal("players survived a hard reset")
	}
	if len(i.persistentScores) != 0 || len(i.persistentPositions) != 0 {
		t.Fatal("persistent standing survived a hard reset")
	}
	if i.czar != "" || i.round != 0 || i.isStarted {
		t.Fatal("round state survived a hard reset")
	}
	if len(i.blackDeck) != 3 || len(i.whiteDeck) != 20 {
		t.Fatalf("piles = %d/%d, want fresh deck 3/20", len(i.blackDeck), len(i.whiteDeck))
	}
}
