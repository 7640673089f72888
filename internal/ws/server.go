package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"card-czar/internal/deck"
	"card-czar/internal/game"
)

// Server is the session router: it upgrades connections, demultiplexes
// protocol messages, and resolves the game instance a connection belongs
// to. Instances are created lazily on first reference and live for the
// process lifetime.
type Server struct {
	loader   *deck.Loader
	cfg      game.Config
	upgrader websocket.Upgrader

	mu    sync.Mutex
	games map[string]*game.Instance
}

func NewServer(loader *deck.Loader, cfg game.Config) *Server {
	return &Server{
		loader:   loader,
		cfg:      cfg,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		games:    map[string]*game.Instance{},
	}
}

// Client is a transient delivery handle: it never owns game state. It is
// weakly bound to at most one (instance, user) pair after init.
type Client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	instance *game.Instance
	userID   string
	userName string
	deckName string
}

// Send marshals one envelope and queues it without blocking. A slow or
// stuck connection drops messages rather than stalling a game handler.
func (c *Client) Send(path string, data any) {
	msg, err := json.Marshal(outbound{Path: path, Data: data})
	if err != nil {
		log.Error().Err(err).Str("conn_id", c.id).Str("path", path).Msg("marshal outbound failed")
		return
	}
	safeSend(c.send, msg)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Client{id: newConnID(), conn: conn, send: make(chan []byte, 32)}

	go c.writeLoop()
	s.readLoop(c)
}

func (c *Client) writeLoop() {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) == "keepalive" {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			log.Warn().Err(err).Str("conn_id", c.id).Msg("malformed message dropped")
			continue
		}
		s.dispatch(c, env)
	}
}

// dispatch routes one envelope. Unknown paths are ignored; anything but
// init requires a bound connection.
func (s *Server) dispatch(c *Client, env Envelope) {
	if env.Path == "init" {
		var d InitData
		if err := json.Unmarshal(env.Data, &d); err != nil || d.User.ID == "" {
			log.Warn().Err(err).Str("conn_id", c.id).Msg("invalid init dropped")
			return
		}
		s.bind(c, d)
		return
	}
	if c.instance == nil || c.userID == "" {
		return
	}
	switch env.Path {
	case "join-game":
		c.instance.Join(c.userID, c.userName)
	case "start-game":
		c.instance.Start()
	case "leave-game":
		c.instance.Leave(c.userID)
	case "show-black":
		c.instance.ShowBlack(c.userID)
	case "preview-response":
		var index int
		if err := json.Unmarshal(env.Data, &index); err != nil {
			log.Warn().Err(err).Str("conn_id", c.id).Msg("bad preview-response payload")
			return
		}
		c.instance.PreviewResponse(c.userID, index)
	case "choose-cards":
		var cards []*deck.Card
		if err := json.Unmarshal(env.Data, &cards); err != nil {
			log.Warn().Err(err).Str("conn_id", c.id).Msg("bad choose-cards payload")
			return
		}
		ids := make([]string, 0, len(cards))
		for _, card := range cards {
			if card != nil {
				ids = append(ids, card.ID)
			}
		}
		c.instance.ChooseCards(c.userID, ids)
	case "choose-winner":
		var target string
		if err := json.Unmarshal(env.Data, &target); err != nil {
			log.Warn().Err(err).Str("conn_id", c.id).Msg("bad choose-winner payload")
			return
		}
		c.instance.ChooseWinner(c.userID, target)
	case "dump-hand":
		c.instance.DumpHand(c.userID)
	case "reset-game":
		d := s.loader.Load(context.Background(), c.deckName)
		c.instance.ResetHard(d)
	}
}

func (s *Server) bind(c *Client, d InitData) {
	inst := s.getOrCreate(d)
	c.instance = inst
	c.userID = d.User.ID
	c.userName = d.User.Name
	c.deckName = d.Deck
	inst.Connect(c.userID, c)
	log.Info().Str("conn_id", c.id).Str("user", d.User.Name).Str("instance", inst.Key()).Msg("connection bound")
}

func (s *Server) getOrCreate(d InitData) *game.Instance {
	key := d.Instance
	if key == "" {
		key = "default"
	}
	s.mu.Lock()
	if g := s.games[key]; g != nil {
		s.mu.Unlock()
		return g
	}
	s.mu.Unlock()

	// Deck loading can hit disk or the network; keep it outside the lock.
	loaded := s.loader.Load(context.Background(), d.Deck)

	s.mu.Lock()
	defer s.mu.Unlock()
	if g := s.games[key]; g != nil {
		return g
	}
	g := game.NewInstance(key, loaded, s.cfg, d.Debug)
	s.games[key] = g
	log.Info().Str("instance", key).Str("deck", d.Deck).Bool("debug", d.Debug).Msg("instance created")
	return g
}

func (s *Server) unregister(c *Client) {
	if c.instance != nil && c.userID != "" {
		c.instance.Disconnect(c.userID, c)
	}
	safeClose(c.send)
}
