package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"nfc-kiosk/internal/blockfrost"
)

var ErrListTransactions = errors.New("error listing asset transactions")

type Action string

const (
	ActionMint     Action = "Mint"
	ActionBurn     Action = "Burn"
	ActionTransfer Action = "Transfer"
	ActionUpdate   Action = "Update"
	ActionUnknown  Action = "Unknown"
)

const StatusCompleted = "Completed"

type chain interface {
	AssetTransactions(ctx context.Context, unit string) ([]blockfrost.AssetTransaction, error)
	Transaction(ctx context.Context, hash string) (blockfrost.Transaction, error)
	TransactionUTXOs(ctx context.Context, hash string) (blockfrost.TransactionUTXOs, error)
}

// Entry is one on-chain step in a product's history. Datum is the raw inline
// datum hex carried by the asset's UTXO.
type Entry struct {
	TxHash         string `json:"tx_hash"`
	BlockTime      int64  `json:"datetime"`
	Status         string `json:"status"`
	Action         Action `json:"action"`
	QuantityChange int64  `json:"quantity_change"`
	Fee            string `json:"fee"`
	Datum          string `json:"datum,omitempty"`
}

type Tracking struct {
	Unit string `json:"unit"`
	// Datum is the datum of the newest entry: the product's current metadata.
	Datum   string  `json:"datum,omitempty"`
	History []Entry `json:"transaction_history"`
}

type Tracker struct {
	chain chain
}

func New(c chain) *Tracker {
	return &Tracker{chain: c}
}

// Track builds the history of an asset unit, newest first. A transaction that
// cannot be fetched is logged and left out.
func (t *Tracker) Track(ctx context.Context, unit string) (Tracking, error) {
	const fn = "Tracker:Track"
	refs, err := t.chain.AssetTransactions(ctx, unit)
	if err != nil {
		return Tracking{}, fmt.Errorf("%s:%w:%w", fn, ErrListTransactions, err)
	}

	history := make([]Entry, 0, len(refs))
	for _, ref := range refs {
		entry, err := t.entry(ctx, unit, ref.TxHash)
		if err != nil {
			slog.ErrorContext(ctx, "Error processing transaction", "tx_hash", ref.TxHash, "unit", unit, "error", err)
			continue
		}
		history = append(history, entry)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].BlockTime > history[j].BlockTime
	})

	tracking := Tracking{Unit: unit, History: history}
	if len(history) > 0 {
		tracking.Datum = history[0].Datum
	}
	return tracking, nil
}

func (t *Tracker) entry(ctx context.Context, unit, hash string) (Entry, error) {
	tx, err := t.chain.Transaction(ctx, hash)
	if err != nil {
		return Entry{}, err
	}
	utxos, err := t.chain.TransactionUTXOs(ctx, hash)
	if err != nil {
		return Entry{}, err
	}

	in, inQty := holding(utxos.Inputs, unit)
	out, outQty := holding(utxos.Outputs, unit)
	action, change := Classify(inQty, outQty)

	var datum string
	switch {
	case out != nil && out.InlineDatum != "":
		datum = out.InlineDatum
	case in != nil && in.InlineDatum != "":
		datum = in.InlineDatum
	}

	return Entry{
		TxHash:         hash,
		BlockTime:      tx.BlockTime,
		Status:         StatusCompleted,
		Action:         action,
		QuantityChange: change,
		Fee:            tx.Fees,
		Datum:          datum,
	}, nil
}

// Classify derives the action from the asset quantity held by the first
// input and the first output that carry it.
func Classify(inQty, outQty int64) (Action, int64) {
	switch {
	case inQty == 0 && outQty > 0:
		return ActionMint, outQty
	case outQty == 0 && inQty > 0:
		return ActionBurn, -inQty
	case inQty > 0 && outQty > 0:
		if outQty == inQty {
			return ActionTransfer, 0
		}
		return ActionUpdate, outQty - inQty
	}
	return ActionUnknown, 0
}

func holding(utxos []blockfrost.UTXO, unit string) (*blockfrost.UTXO, int64) {
	for i := range utxos {
		for _, amt := range utxos[i].Amount {
			if amt.Unit != unit {
				continue
			}
			qty, err := strconv.ParseInt(amt.Quantity, 10, 64)
			if err != nil {
				qty = 0
			}
			return &utxos[i], qty
		}
	}
	return nil, 0
}
