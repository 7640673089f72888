package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"card-czar/internal/deck"
)

const (
	maxSeats   = 10
	handSize   = 12
	minPlayers = 3
)

// Sender delivers one wire message to a single connection. Sends must never
// block: handlers call them while holding the instance lock.
type Sender interface {
	Send(path string, data any)
}

type Config struct {
	DisconnectGrace time.Duration
	IdleTimeout     time.Duration
	WinnerDelay     time.Duration
}

type WaitingUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Instance owns one game's players, seating, decks, and timers. A single
// mutex serializes message handlers and timer callbacks, so every handler
// body is an atomic state transition. Instances live for the process
// lifetime; idle games are never evicted.
type Instance struct {
	key   string
	debug bool
	cfg   Config
	log   zerolog.Logger

	mu                     sync.Mutex
	players                map[string]*Player
	order                  []string // join order; drives czar election and rotation
	waitingRoom            []WaitingUser
	czar                   string
	round                  int
	isStarted              bool
	currentBlackCard       *deck.Card
	currentPreviewResponse int
	showBlack              bool
	winner                 *PlayerView

	original     deck.Deck
	blackDeck    []deck.Card
	blackDiscard []deck.Card
	whiteDeck    []deck.Card
	whiteDiscard []deck.Card

	// Standing survives a player's removal so a rejoin restores it.
	persistentScores    map[string]int
	persistentPositions map[string]int

	conns map[string]Sender

	timerSeq   uint64
	inactivity map[string]*playerTimer
	disconnect map[string]*playerTimer
	resetSeq   uint64
	resetTimer *time.Timer

	rng *rand.Rand
}

func NewInstance(key string, d deck.Deck, cfg Config, debug bool) *Instance {
	i := &Instance{
		key:                 key,
		debug:               debug,
		cfg:                 cfg,
		log:                 log.With().Str("instance", key).Logger(),
		players:             map[string]*Player{},
		persistentScores:    map[string]int{},
		persistentPositions: map[string]int{},
		conns:               map[string]Sender{},
		inactivity:          map[string]*playerTimer{},
		disconnect:          map[string]*playerTimer{},
		rng:                 rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	i.installDeckLocked(d)
	return i
}

func (i *Instance) Key() string { return i.key }

func (i *Instance) installDeckLocked(d deck.Deck) {
	i.original = d
	i.blackDeck = append([]deck.Card(nil), d.Black...)
	i.whiteDeck = append([]deck.Card(nil), d.White...)
	i.blackDiscard = nil
	i.whiteDiscard = nil
	i.shuffleLocked(i.blackDeck)
	i.shuffleLocked(i.whiteDeck)
}

func (i *Instance) shuffleLocked(cards []deck.Card) {
	i.rng.Shuffle(len(cards), func(a, b int) {
		cards[a], cards[b] = cards[b], cards[a]
	})
}

// Connect binds a live connection to a user id. A connection for an already
// seated player is a reconnect: the pending grace-period kick is canceled.
func (i *Instance) Connect(userID string, snd Sender) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.conns[userID] = snd
	if p := i.players[userID]; p != nil {
		p.Connected = true
		p.DisconnectTime = 0
		i.cancelDisconnectLocked(userID)
		i.log.Info().Str("player", p.Name).Msg("player_reconnected")
	}
	i.syncLocked()
}

// Disconnect handles a dropped connection. The sender identity guards
// against a stale close racing a fresh connection for the same user.
func (i *Instance) Disconnect(userID string, snd Sender) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.conns[userID] != snd {
		return
	}
	delete(i.conns, userID)
	if p := i.players[userID]; p != nil {
		p.Connected = false
		p.DisconnectTime = time.Now().UnixMilli()
		i.armDisconnectLocked(userID)
		i.log.Info().Str("player", p.Name).Dur("grace", i.cfg.DisconnectGrace).Msg("player_disconnected")
	}
	for idx, w := range i.waitingRoom {
		if w.ID == userID {
			i.waitingRoom = append(i.waitingRoom[:idx], i.waitingRoom[idx+1:]...)
			i.log.Info().Str("player", w.Name).Msg("removed_from_waiting_room")
			break
		}
	}
	i.syncLocked()
}
