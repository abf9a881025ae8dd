package storage

import (
	"context"
	"log/slog"
	"sync/atomic"

	synerrors "github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/value"
)

// Adapter reads and writes whole state objects on a TextStore.
// A nil store is treated as an unavailable medium.
type Adapter struct {
	store    TextStore
	logger   *slog.Logger
	hydrated atomic.Bool
}

// NewAdapter creates an adapter over store.
func NewAdapter(store TextStore, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		store:  store,
		logger: logger.With("component", "storage"),
	}
}

// Hydrated reports whether a read has been attempted, successful or not.
func (a *Adapter) Hydrated() bool {
	return a.hydrated.Load()
}

// Load reads the object stored under key. It returns (nil, nil) when
// nothing is stored and a coded error (S001 unavailable, S002 malformed)
// otherwise. Load marks the adapter hydrated whatever the outcome.
func (a *Adapter) Load(ctx context.Context, key string) (*value.Object, error) {
	defer a.hydrated.Store(true)

	if a.store == nil {
		return nil, synerrors.New("S001").WithKey(key).Wrap(ErrUnavailable)
	}

	text, ok, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, synerrors.New("S001").WithKey(key).Wrap(err)
	}
	if !ok {
		return nil, nil
	}

	v, err := value.ParseString(text)
	if err != nil {
		return nil, synerrors.New("S002").WithKey(key).Wrap(err)
	}
	obj, isObj := v.(*value.Object)
	if !isObj {
		return nil, synerrors.New("S002").WithKey(key).
			WithDetail("stored JSON is a " + value.KindOf(v).String() + ", not an object")
	}
	return obj, nil
}

// Read is Load with failures absorbed: any error reads as nothing stored.
func (a *Adapter) Read(ctx context.Context, key string) (*value.Object, bool) {
	obj, err := a.Load(ctx, key)
	if err != nil {
		a.logger.Warn("storage read failed", synerrors.Attrs(err)...)
		return nil, false
	}
	return obj, obj != nil
}

// Write replaces the stored text for key with the JSON encoding of state.
// Callers merge partial updates into the full object before writing.
func (a *Adapter) Write(ctx context.Context, key string, state *value.Object) error {
	if a.store == nil {
		return synerrors.New("S001").WithKey(key).Wrap(ErrUnavailable)
	}
	data, err := value.Marshal(state)
	if err != nil {
		return synerrors.New("S005").WithKey(key).Wrap(err)
	}
	if err := a.store.Set(ctx, key, string(data)); err != nil {
		return synerrors.New("S005").WithKey(key).Wrap(err)
	}
	return nil
}

// Remove deletes the stored state for key.
func (a *Adapter) Remove(ctx context.Context, key string) error {
	if a.store == nil {
		return synerrors.New("S001").WithKey(key).Wrap(ErrUnavailable)
	}
	if err := a.store.Remove(ctx, key); err != nil {
		return synerrors.New("S005").WithKey(key).Wrap(err)
	}
	return nil
}
