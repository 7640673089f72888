package game

import (
	"card-czar/internal/deck"
)

// PlayerView is the wire shape of one player. Hands are redacted to empty
// for everyone but the player themself unless the instance runs in debug
// mode.
type PlayerView struct {
	ID             string       `json:"_id"`
	Trophies       int          `json:"trophies"`
	Cards          []*deck.Card `json:"cards"`
	Selected       []deck.Card  `json:"selected"`
	Name           string       `json:"name"`
	Position       int          `json:"position"`
	Connected      bool         `json:"connected"`
	DisconnectTime int64        `json:"disconnectTime"`
}

// View is the personalized sync-game payload.
type View struct {
	Players                map[string]PlayerView `json:"players"`
	PlayerCount            int                   `json:"playerCount"`
	WaitingRoom            []WaitingUser         `json:"waitingRoom"`
	Czar                   string                `json:"czar"`
	CurrentBlackCard       *deck.Card            `json:"currentBlackCard"`
	IsStarted              bool                  `json:"isStarted"`
	ShowBlack              bool                  `json:"showBlack"`
	CurrentPreviewResponse int                   `json:"currentPreviewResponse"`
	Winner                 *PlayerView           `json:"winner"`
	Round                  int                   `json:"round"`
}

func (i *Instance) playerViewLocked(p *Player, withHand bool) PlayerView {
	v := PlayerView{
		ID:             p.ID,
		Trophies:       p.Trophies,
		Selected:       append([]deck.Card{}, p.Selected...),
		Name:           p.Name,
		Position:       p.Position,
		Connected:      p.Connected,
		DisconnectTime: p.DisconnectTime,
		Cards:          []*deck.Card{},
	}
	if withHand {
		v.Cards = append([]*deck.Card{}, p.Cards...)
	}
	return v
}

func (i *Instance) viewForLocked(target string) View {
	players := make(map[string]PlayerView, len(i.players))
	for id, p := range i.players {
		players[id] = i.playerViewLocked(p, i.debug || id == target)
	}
	waiting := i.waitingRoom
	if waiting == nil {
		waiting = []WaitingUser{}
	}
	return View{
		Players:                players,
		PlayerCount:            len(i.players),
		WaitingRoom:            waiting,
		Czar:                   i.czar,
		CurrentBlackCard:       i.currentBlackCard,
		IsStarted:              i.isStarted,
		ShowBlack:              i.showBlack,
		CurrentPreviewResponse: i.currentPreviewResponse,
		Winner:                 i.winner,
		Round:                  i.round,
	}
}

// syncLocked pushes a personalized view to every connection bound to the
// instance: one push per connection per mutation.
func (i *Instance) syncLocked() {
	for id, snd := range i.conns {
		snd.Send("sync-game", i.viewForLocked(id))
	}
}

func (i *Instance) syncOneLocked(userID string) {
	if snd := i.conns[userID]; snd != nil {
		snd.Send("sync-game", i.viewForLocked(userID))
	}
}

func (i *Instance) sendErrorLocked(userID, msg string) {
	if snd := i.conns[userID]; snd != nil {
		snd.Send("error", msg)
	}
}

func (i *Instance) playSoundLocked(asset string) {
	for _, snd := range i.conns {
		snd.Send("play-sound", asset)
	}
}
