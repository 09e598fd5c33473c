package blockfrost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	bf "github.com/blockfrost/blockfrost-go"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrRequest  = errors.New("request failed")
	ErrStatus   = errors.New("unexpected status")
	ErrDecode   = errors.New("error decoding response")
)

var networkURLs = map[string]string{
	"mainnet": "https://cardano-mainnet.blockfrost.io/api/v0",
	"preprod": "https://cardano-preprod.blockfrost.io/api/v0",
	"preview": "https://cardano-preview.blockfrost.io/api/v0",
}

// BaseURLFor picks the API host from the network prefix Blockfrost puts on
// project IDs. Unknown or empty IDs fall back to preprod.
func BaseURLFor(projectID string) string {
	if len(projectID) >= 7 {
		if u, ok := networkURLs[projectID[:7]]; ok {
			return u
		}
	}
	return networkURLs["preprod"]
}

type Config struct {
	ProjectID string
	// BaseURL includes the API version, e.g. https://cardano-preprod.blockfrost.io/api/v0.
	BaseURL string
}

// Client narrows the Blockfrost SDK to the calls the kiosk makes and maps
// its errors onto this package's sentinels.
type Client struct {
	api bf.APIClient
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURLFor(cfg.ProjectID)
	}
	return &Client{
		api: bf.NewAPIClient(bf.APIClientOptions{
			ProjectID: cfg.ProjectID,
			Server:    strings.TrimRight(cfg.BaseURL, "/"),
		}),
	}
}

type Asset struct {
	Asset           string         `json:"asset"`
	PolicyID        string         `json:"policy_id"`
	AssetName       string         `json:"asset_name"`
	Quantity        string         `json:"quantity"`
	OnchainMetadata map[string]any `json:"onchain_metadata"`
}

type AssetTransaction struct {
	TxHash      string `json:"tx_hash"`
	TxIndex     int    `json:"tx_index"`
	BlockHeight int64  `json:"block_height"`
	BlockTime   int64  `json:"block_time"`
}

type Transaction struct {
	Hash      string `json:"hash"`
	Block     string `json:"block"`
	BlockTime int64  `json:"block_time"`
	Fees      string `json:"fees"`
}

type Amount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

type UTXO struct {
	Address     string   `json:"address"`
	Amount      []Amount `json:"amount"`
	InlineDatum string   `json:"inline_datum"`
}

type TransactionUTXOs struct {
	Hash    string `json:"hash"`
	Inputs  []UTXO `json:"inputs"`
	Outputs []UTXO `json:"outputs"`
}

// Health reports an error unless the API answers and calls itself healthy.
func (c *Client) Health(ctx context.Context) error {
	const fn = "Blockfrost:Health"
	h, err := c.api.Health(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w", fn, classify(err))
	}
	if !h.IsHealthy {
		return fmt.Errorf("%s:%w: unhealthy", fn, ErrStatus)
	}
	return nil
}

// Asset fetches a native asset by policy ID + hex asset name.
func (c *Client) Asset(ctx context.Context, assetID string) (Asset, error) {
	const fn = "Blockfrost:Asset"
	a, err := c.api.Asset(ctx, assetID)
	if err != nil {
		return Asset{}, fmt.Errorf("%s:%w", fn, classify(err))
	}
	return convert[Asset](fn, a)
}

// AssetTransactions lists the transactions that touched the asset, oldest
// first, as returned by the first result page.
func (c *Client) AssetTransactions(ctx context.Context, unit string) ([]AssetTransaction, error) {
	const fn = "Blockfrost:AssetTransactions"
	txs, err := c.api.AssetTransactions(ctx, unit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", fn, classify(err))
	}
	out, err := convert[[]AssetTransaction](fn, txs)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []AssetTransaction{}
	}
	return out, nil
}

func (c *Client) Transaction(ctx context.Context, hash string) (Transaction, error) {
	const fn = "Blockfrost:Transaction"
	tx, err := c.api.Transaction(ctx, hash)
	if err != nil {
		return Transaction{}, fmt.Errorf("%s:%w", fn, classify(err))
	}
	return convert[Transaction](fn, tx)
}

func (c *Client) TransactionUTXOs(ctx context.Context, hash string) (TransactionUTXOs, error) {
	const fn = "Blockfrost:TransactionUTXOs"
	utxos, err := c.api.TransactionUTXOs(ctx, hash)
	if err != nil {
		return TransactionUTXOs{}, fmt.Errorf("%s:%w", fn, classify(err))
	}
	return convert[TransactionUTXOs](fn, utxos)
}

// convert copies an SDK value into the local type through its JSON form. Both
// carry the REST API's field tags; the local types drop the SDK's optional
// pointers.
func convert[T any](fn string, v any) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("%s:%w:%w", fn, ErrDecode, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s:%w:%w", fn, ErrDecode, err)
	}
	return out, nil
}

// classify maps an SDK error onto ErrNotFound, ErrStatus or ErrRequest. The
// original error stays in the chain.
func classify(err error) error {
	var apiErr *bf.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w:%w", ErrRequest, err)
	}
	code := statusCode(apiErr.Response)
	if code == http.StatusNotFound {
		return fmt.Errorf("%w:%w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %d:%w", ErrStatus, code, err)
}

// statusCode reads the HTTP status out of an SDK error response body.
func statusCode(resp any) int {
	var body struct {
		Tagged int `json:"status_code"`
		Plain  int `json:"StatusCode"`
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return 0
	}
	_ = json.Unmarshal(raw, &body)
	if body.Tagged != 0 {
		return body.Tagged
	}
	return body.Plain
}

// Short renders err for a person: the sentinel this package mapped it to,
// without the wrapped call chain.
func Short(err error) string {
	for _, s := range []error{ErrNotFound, ErrStatus, ErrRequest, ErrDecode} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
