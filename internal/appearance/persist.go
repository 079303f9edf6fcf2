package appearance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mrlokans/epubreader/internal/entities"
)

// SettingsStore is the key/value store appearance settings are saved to.
type SettingsStore interface {
	GetValue(ctx context.Context, key, fallback string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Persister saves settings so they survive restarts.
type Persister struct {
	store SettingsStore
}

// NewPersister creates a persister over store.
func NewPersister(store SettingsStore) *Persister {
	return &Persister{store: store}
}

// Load returns the saved settings, or Defaults when nothing was saved.
// Missing fields in an older document fall back to their defaults.
func (p *Persister) Load(ctx context.Context) (Settings, error) {
	raw, err := p.store.GetValue(ctx, entities.SettingKeyAppearance, "")
	if err != nil {
		return Defaults(), fmt.Errorf("failed to load appearance settings: %w", err)
	}
	settings := Defaults()
	if raw == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return Defaults(), fmt.Errorf("failed to decode appearance settings: %w", err)
	}
	return settings.normalize(), nil
}

// Save stores s.
func (p *Persister) Save(ctx context.Context, s Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.store.SetSetting(ctx, entities.SettingKeyAppearance, string(raw))
}

// Watch saves every change published by state until ctx is done. Failures
// are logged and do not stop the watch.
func (p *Persister) Watch(ctx context.Context, state *State) {
	updates, cancel := state.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if err := p.Save(ctx, s); err != nil {
				log.Printf("Failed to save appearance settings: %v", err)
			}
		}
	}
}
