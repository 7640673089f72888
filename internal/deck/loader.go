package deck

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

//go:embed default_deck.json
var defaultDeckJSON []byte

var ErrInvalidDeck = errors.New("deck: invalid deck document")

// rawEntry accepts both the bare-string and the {text,...} card shapes.
type rawEntry struct {
	Text         string
	NumResponses int
}

func (e *rawEntry) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &e.Text)
	}
	var obj struct {
		Text         string `json:"text"`
		NumResponses int    `json:"numResponses"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.Text = obj.Text
	e.NumResponses = obj.NumResponses
	return nil
}

type rawDeck struct {
	Black []rawEntry `json:"black"`
	White []rawEntry `json:"white"`
}

type Loader struct {
	dir     string
	client  *http.Client
	catalog *Catalog
}

// NewLoader builds a loader reading decks from dir, with an optional
// database catalog consulted when no file matches.
func NewLoader(dir string, catalog *Catalog) *Loader {
	return &Loader{
		dir:     dir,
		client:  &http.Client{Timeout: 10 * time.Second},
		catalog: catalog,
	}
}

// Load resolves a deck by name or URL and mints process-unique card ids.
// It never fails: any fetch or parse problem falls back to the embedded
// default deck.
func (l *Loader) Load(ctx context.Context, identifier string) Deck {
	if identifier == "" {
		identifier = "main"
	}
	doc, err := l.fetch(ctx, identifier)
	if err == nil {
		d, nerr := parse(doc)
		if nerr == nil {
			log.Info().Str("deck", identifier).Int("black", len(d.Black)).Int("white", len(d.White)).Msg("deck_loaded")
			return d
		}
		err = nerr
	}
	log.Warn().Err(err).Str("deck", identifier).Msg("deck_load_failed_using_default")
	return DefaultDeck()
}

func (l *Loader) fetch(ctx context.Context, identifier string) ([]byte, error) {
	if strings.HasPrefix(identifier, "http://") || strings.HasPrefix(identifier, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, identifier, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("deck: fetch %s: status %d", identifier, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	}

	// Base name only, so a deck name can never escape the deck directory.
	path := filepath.Join(l.dir, filepath.Base(identifier)+".json")
	doc, err := os.ReadFile(path)
	if err == nil {
		return doc, nil
	}
	if l.catalog != nil {
		if doc, cerr := l.catalog.Get(ctx, identifier); cerr == nil {
			return doc, nil
		}
	}
	return nil, err
}

func parse(doc []byte) (Deck, error) {
	var raw rawDeck
	if err := json.Unmarshal(doc, &raw); err != nil {
		return Deck{}, err
	}
	return normalize(raw)
}

func normalize(raw rawDeck) (Deck, error) {
	if len(raw.Black) == 0 || len(raw.White) == 0 {
		return Deck{}, ErrInvalidDeck
	}
	d := Deck{
		Black: make([]Card, 0, len(raw.Black)),
		White: make([]Card, 0, len(raw.White)),
	}
	for _, e := range raw.Black {
		d.Black = append(d.Black, Card{ID: nextCardID("black"), Text: e.Text, NumResponses: e.NumResponses})
	}
	for _, e := range raw.White {
		d.White = append(d.White, Card{ID: nextCardID("white"), Text: e.Text})
	}
	return d, nil
}

// DefaultDeck mints a fresh copy of the embedded deck. The embedded document
// is validated at startup via package tests, so a parse failure here means a
// broken build.
func DefaultDeck() Deck {
	d, err := parse(defaultDeckJSON)
	if err != nil {
		panic("deck: embedded default deck is invalid: " + err.Error())
	}
	return d
}
