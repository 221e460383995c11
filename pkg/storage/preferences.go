package storage

import "context"

// Preference keys.
const (
	KeyPreferredWallet = "walletmesh:preferredWallet"
	KeyTheme           = "walletmesh:theme"
)

// Preferences provides typed access to user preferences.
type Preferences struct {
	store Storage
}

// NewPreferences wraps store.
func NewPreferences(store Storage) *Preferences {
	return &Preferences{store: store}
}

// PreferredWallet returns the last wallet the user connected to.
func (p *Preferences) PreferredWallet(ctx context.Context) (string, bool, error) {
	return p.store.Get(ctx, KeyPreferredWallet)
}

// SetPreferredWallet records walletID as preferred.
func (p *Preferences) SetPreferredWallet(ctx context.Context, walletID string) error {
	return p.store.Set(ctx, KeyPreferredWallet, walletID)
}

// ClearPreferredWallet forgets the preferred wallet.
func (p *Preferences) ClearPreferredWallet(ctx context.Context) error {
	return p.store.Remove(ctx, KeyPreferredWallet)
}

// Theme returns the stored theme, or "system" when unset.
func (p *Preferences) Theme(ctx context.Context) (string, error) {
	v, ok, err := p.store.Get(ctx, KeyTheme)
	if err != nil || !ok || v == "" {
		return "system", err
	}
	return v, nil
}

// SetTheme stores the UI theme.
func (p *Preferences) SetTheme(ctx context.Context, theme string) error {
	return p.store.Set(ctx, KeyTheme, theme)
}
