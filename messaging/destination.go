package messaging

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

const destinationKey = "destination_chat_id"

// SettingsStore persists small string settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Destination holds the chat scheduled jobs post to. The last Set wins.
type Destination struct {
	store SettingsStore
	log   *zap.Logger

	mu   sync.RWMutex
	chat int64
	set  bool

	// saveMu orders store writes with memory writes. persisted is the last
	// value the store accepted.
	saveMu    sync.Mutex
	persisted int64
	saved     bool
}

// NewDestination returns an empty holder. store may be nil, in which case
// the destination lives only in memory.
func NewDestination(store SettingsStore, logger *zap.Logger) *Destination {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Destination{store: store, log: logger.Named("destination")}
}

// Load restores a previously persisted destination.
func (d *Destination) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	raw, ok, err := d.store.GetSetting(ctx, destinationKey)
	if err != nil {
		return fmt.Errorf("messaging: load destination: %w", err)
	}
	if !ok {
		return nil
	}
	chat, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("messaging: stored destination %q: %w", raw, err)
	}
	d.saveMu.Lock()
	d.mu.Lock()
	d.chat, d.set = chat, true
	d.mu.Unlock()
	d.persisted, d.saved = chat, true
	d.saveMu.Unlock()
	d.log.Info("destination restored", zap.Int64("chat_id", chat))
	return nil
}

// Set records chat as the destination and persists it unless the store
// already holds it. A failed save is retried by the next Set.
func (d *Destination) Set(ctx context.Context, chat int64) error {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	d.mu.Lock()
	changed := !d.set || d.chat != chat
	d.chat, d.set = chat, true
	d.mu.Unlock()

	if changed {
		d.log.Info("destination updated", zap.Int64("chat_id", chat))
	}
	if d.store == nil || (d.saved && d.persisted == chat) {
		return nil
	}
	if err := d.store.PutSetting(ctx, destinationKey, strconv.FormatInt(chat, 10)); err != nil {
		return fmt.Errorf("messaging: persist destination: %w", err)
	}
	d.persisted, d.saved = chat, true
	return nil
}

// Get returns the current destination and whether one is known.
func (d *Destination) Get() (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.chat, d.set
}
