package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoCard   = errors.New("no card presented")
	ErrReadCard = errors.New("error reading card")
	ErrFrame    = errors.New("malformed reader frame")
)

// DefaultPollTimeout bounds a single ReadCard call.
const DefaultPollTimeout = 500 * time.Millisecond

// Card is one tag read. Data is the JSON document stored on the tag, or nil
// when the reader saw the UID but could not read the data blocks.
type Card struct {
	UID  string         `json:"uid"`
	Data map[string]any `json:"data"`
}

// Reader yields presented cards. ReadCard returns ErrNoCard when nothing was
// presented within the poll window.
type Reader interface {
	ReadCard(ctx context.Context) (Card, error)
	Close() error
}

// ParseFrame decodes one bridge frame: {"uid":"04A1B2C3","data":{...}}.
func ParseFrame(b []byte) (Card, error) {
	const fn = "Reader:ParseFrame"
	var card Card
	if err := json.Unmarshal(b, &card); err != nil {
		return Card{}, fmt.Errorf("%s:%w:%w", fn, ErrFrame, err)
	}
	if card.UID == "" {
		return Card{}, fmt.Errorf("%s:%w: missing uid", fn, ErrFrame)
	}
	return card, nil
}
