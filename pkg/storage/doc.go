// Package storage provides the key/value store used for user preferences.
//
// Only preferences live here (the preferred wallet, the UI theme). Session
// and transaction state is kept in memory and never persisted, so a storage
// failure can degrade convenience but never correctness.
//
// # Usage
//
//	store := storage.NewFileStorage("/path/to/dir")
//	prefs := storage.NewPreferences(store)
//
//	if err := prefs.SetPreferredWallet(ctx, "io.metamask"); err != nil {
//	    return err
//	}
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package storage
