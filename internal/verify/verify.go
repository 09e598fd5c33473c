package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"nfc-kiosk/internal/blockfrost"
	"nfc-kiosk/internal/reader"
	"nfc-kiosk/internal/scan"
)

const (
	ReasonUnreadable    = "Could not read card data"
	ReasonInvalidFormat = "Invalid card format"
	ReasonNotFound      = "NFT not found"
	ReasonIDMismatch    = "ID mismatch"
)

// Tag fields written to the card: policy ID, hex asset name, student ID.
const (
	fieldPolicy  = "p"
	fieldAsset   = "a"
	fieldStudent = "s"
)

type assetSource interface {
	Asset(ctx context.Context, assetID string) (blockfrost.Asset, error)
}

type Verifier struct {
	assets assetSource
}

func New(assets assetSource) *Verifier {
	return &Verifier{assets: assets}
}

// Verify checks a card's student token on chain. The result has no
// timestamp or uid; the caller stamps those.
func (v *Verifier) Verify(ctx context.Context, card reader.Card) scan.Event {
	if len(card.Data) == 0 {
		return scan.Failed(ReasonUnreadable, "")
	}
	policyID, okP := field(card.Data, fieldPolicy)
	assetName, okA := field(card.Data, fieldAsset)
	studentID, okS := field(card.Data, fieldStudent)
	if !okP || !okA || !okS {
		return scan.Failed(ReasonInvalidFormat, "")
	}

	asset, err := v.assets.Asset(ctx, policyID+assetName)
	if errors.Is(err, blockfrost.ErrNotFound) {
		return scan.Failed(ReasonNotFound, studentID)
	}
	if err != nil {
		slog.WarnContext(ctx, "Asset lookup failed", "uid", card.UID, "asset", policyID+assetName, "error", err)
		return scan.Failed("Blockchain error: "+blockfrost.Short(err), studentID)
	}

	onchainID, _ := field(asset.OnchainMetadata, "student_id")
	if onchainID != studentID {
		return scan.Failed(ReasonIDMismatch, studentID)
	}

	name, _ := field(asset.OnchainMetadata, "student_name")
	department, _ := field(asset.OnchainMetadata, "department")
	issuedAt, _ := field(asset.OnchainMetadata, "issued_at")
	return scan.Verified(onchainID, name, department, issuedAt)
}

// field renders a JSON value as text; numbers written as IDs compare equal to
// their string form.
func field(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", ok
	}
	if s, isString := v.(string); isString {
		return s, true
	}
	return fmt.Sprint(v), true
}
