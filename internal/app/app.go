// Package app wires together configuration, the device client, and the
// local store into a single Deps struct that commands receive at runtime.
package app

import (
	"github.com/derickschaefer/aasun/internal/config"
	"github.com/derickschaefer/aasun/internal/device"
	"github.com/derickschaefer/aasun/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is nil until RequireStore is called; most device commands never
// touch the database.
type Deps struct {
	Config *config.Config
	Client *device.Client
	Store  *store.Store
}

// New builds a Deps from resolved config.
func New(cfg *config.Config) *Deps {
	client := device.NewClient(
		cfg.BaseURL,
		cfg.Timeout,
		cfg.Rate,
		cfg.Debug,
	)
	return &Deps{
		Config: cfg,
		Client: client,
	}
}

// RequireStore opens the bbolt database at Config.DBPath if it is not
// already open.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return err
	}
	d.Store = s
	return nil
}

// Close releases the store, if one was opened.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}
