package app

import (
	"context"
	"errors"
	"fmt"

	"tubewatch/internal/config"
	"tubewatch/internal/feed"
	"tubewatch/internal/storage"
	logx "tubewatch/pkg/logx"
)

// openState opens the configured store and loads the last-seen state. With
// reset_on_corrupt a corrupt store is moved aside once and loading restarts
// from an empty state; otherwise corruption is fatal.
func openState(ctx context.Context, rt *config.Runtime, log logx.Logger) (storage.Store, feed.LastSeen, error) {
	for attempt := 0; ; attempt++ {
		st, state, err := tryOpenState(ctx, rt, log)
		if err == nil {
			return st, state, nil
		}
		if !errors.Is(err, storage.ErrCorrupt) || !rt.ResetOnCorrupt || attempt > 0 {
			return nil, nil, err
		}
		moved, qerr := storage.Quarantine(rt.Storage.Path)
		if qerr != nil {
			return nil, nil, fmt.Errorf("storage: quarantine corrupt state: %w", qerr)
		}
		log.Warn("corrupt state moved aside; starting from empty state",
			logx.String("path", rt.Storage.Path),
			logx.String("moved_to", moved),
			logx.Err(err),
		)
	}
}

func tryOpenState(ctx context.Context, rt *config.Runtime, log logx.Logger) (storage.Store, feed.LastSeen, error) {
	st, err := storage.Open(rt.Storage, log)
	if err != nil {
		return nil, nil, err
	}
	state, err := st.Load(ctx, rt.Channels)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return st, state, nil
}

// LoadState returns the persisted last-seen state without starting anything.
func LoadState(ctx context.Context, cfg *config.Config) (feed.LastSeen, error) {
	rt, err := config.Build(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(rt.Storage, logx.Nop())
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Load(ctx, rt.Channels)
}
