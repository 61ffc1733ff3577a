// Package configstore persists the per-user configuration document and
// streams live updates to subscribers.
package configstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spherical/image-analyzer/internal/domain"
)

// Snapshot is one emission of a subscription. Exists is false when the
// document has never been written.
type Snapshot struct {
	Config domain.AppConfiguration
	Exists bool
}

// Store reads, overwrites and watches configuration documents by path.
type Store interface {
	// Subscribe emits the current document first, then one snapshot per
	// write. The returned func stops the subscription and closes the channel.
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, func(), error)
	// Save overwrites the whole document.
	Save(ctx context.Context, path string, cfg domain.AppConfiguration) error
	Load(ctx context.Context, path string) (domain.AppConfiguration, bool, error)
	Close() error
}

// DocumentPath addresses a user's configuration document.
func DocumentPath(appID, userID string) string {
	return fmt.Sprintf("artifacts/%s/users/%s/configurations/app-config", appID, userID)
}

// Document binds a store to a single path.
type Document struct {
	store Store
	path  string
}

// NewDocument returns a handle on path within store.
func NewDocument(store Store, path string) *Document {
	return &Document{store: store, path: path}
}

// Path returns the bound document path.
func (d *Document) Path() string { return d.path }

// Save implements domain.ConfigWriter.
func (d *Document) Save(ctx context.Context, cfg domain.AppConfiguration) error {
	return d.store.Save(ctx, d.path, cfg)
}

func (d *Document) Load(ctx context.Context) (domain.AppConfiguration, bool, error) {
	return d.store.Load(ctx, d.path)
}

func (d *Document) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	return d.store.Subscribe(ctx, d.path)
}

func encodeDocument(cfg domain.AppConfiguration) ([]byte, error) {
	data, err := json.Marshal(cfg.Normalize())
	if err != nil {
		return nil, domain.StoreError("encode configuration", err)
	}
	return data, nil
}

// decodeDocument parses a stored document. Missing fields stay empty and a
// missing mapping object becomes an empty map.
func decodeDocument(data []byte) (domain.AppConfiguration, error) {
	var cfg domain.AppConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.AppConfiguration{}, domain.StoreError("decode configuration", err)
	}
	return cfg.Normalize(), nil
}

// offer delivers s, replacing an undelivered older snapshot when the
// subscriber is behind. Subscribers only ever need the latest document.
func offer(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
