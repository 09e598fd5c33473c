package cache

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrReadState  = errors.New("error reading reader state")
	ErrWriteState = errors.New("error writing reader state")
)

type ReaderID string

// ReaderState is the last card a reader processed.
type ReaderState struct {
	LastUID    string `json:"last_uid"`
	LastScanAt int64  `json:"last_scan_at"` // unix millis
}

type Cache interface {
	Get(ctx context.Context, readerID ReaderID) (ReaderState, bool, error)
	Set(ctx context.Context, readerID ReaderID, state ReaderState) error
}

// StateCache keeps reader state in process memory.
type StateCache struct {
	mu    sync.Mutex
	store map[ReaderID]ReaderState
}

func New() *StateCache {
	return &StateCache{store: make(map[ReaderID]ReaderState)}
}

func (c *StateCache) Get(_ context.Context, readerID ReaderID) (ReaderState, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, exists := c.store[readerID]
	return state, exists, nil
}

func (c *StateCache) Set(_ context.Context, readerID ReaderID, state ReaderState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[readerID] = state
	return nil
}
