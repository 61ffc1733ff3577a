package configstore

import (
	"context"
	"time"

	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/observability"
)

// fetchFunc reads a document and an opaque version that changes on every write.
type fetchFunc func(ctx context.Context) (data []byte, version string, exists bool, err error)

// pollSubscribe turns a point read into a live subscription for backends
// without change notifications.
func pollSubscribe(ctx context.Context, interval time.Duration, fetch fetchFunc, logger *observability.Logger) (<-chan Snapshot, func(), error) {
	data, version, exists, err := fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	first, err := snapshotOf(data, exists)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Snapshot, 1)
	ch <- first

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := version
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			data, v, exists, err := fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn().Err(err).Msg("Configuration poll failed")
				continue
			}
			if !exists || v == last {
				continue
			}
			last = v

			snap, err := snapshotOf(data, true)
			if err != nil {
				logger.Warn().Err(err).Msg("Skipping unreadable configuration document")
				continue
			}
			offer(ch, snap)
		}
	}()

	stop := func() {
		cancel()
		<-done
	}
	return ch, stop, nil
}

func snapshotOf(data []byte, exists bool) (Snapshot, error) {
	if !exists {
		return Snapshot{Config: domain.AppConfiguration{}.Normalize()}, nil
	}
	cfg, err := decodeDocument(data)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Config: cfg, Exists: true}, nil
}
