package deck

import (
	"strconv"
	"sync/atomic"
)

// Card is immutable once minted. ID is the unit of conservation: at any
// moment a card lives in exactly one pile, hand slot, or selected set.
type Card struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	NumResponses int    `json:"numResponses,omitempty"`
}

type Deck struct {
	Black []Card `json:"black"`
	White []Card `json:"white"`
}

var cardSeq atomic.Uint64

func nextCardID(kind string) string {
	return kind + "_" + strconv.FormatUint(cardSeq.Add(1), 10)
}
