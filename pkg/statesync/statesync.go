// Package statesync keeps an in-memory state object, a URL query string and
// a persistent text store consistent with one another.
//
// A Synchronizer is bound to one template, one storage key and one URL
// namespace. Hydrate seeds the state from the store and then from the URL,
// so URL values win on conflicting fields. After hydration every Update is
// published outward: the full state is written to the store, then the
// namespace's parameters are rewritten on the Location.
//
// Nothing in this package returns medium failures to the caller. Corrupt
// stored text, unreachable media and unreconstructible fields are logged,
// counted, and leave the affected fields at their defaults.
package statesync

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/looplab/fsm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	synerrors "github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/coerce"
	"github.com/vango-dev/statesync/pkg/storage"
	"github.com/vango-dev/statesync/pkg/urlcodec"
	"github.com/vango-dev/statesync/pkg/value"
)

// Status is the hydration progress of a Synchronizer. It only moves
// forward: uninitialized, storage-hydrated, url-hydrated.
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusStorageHydrated Status = "storage-hydrated"
	StatusURLHydrated     Status = "url-hydrated"
)

const (
	eventStoreRead = "store_read"
	eventURLRead   = "url_read"
)

// Config binds a Synchronizer to its template and media.
type Config struct {
	// Template is the default state and the shape oracle for every field.
	// It is cloned, so later changes to it have no effect.
	Template *value.Object

	// StorageKey is the key the full state is stored under.
	StorageKey string

	// Namespace prefixes this synchronizer's URL parameters.
	Namespace string

	// Store is the persistent medium. Nil means unavailable.
	Store storage.TextStore

	// Location is the URL medium. Nil means unavailable.
	Location urlcodec.Location
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records hydration and publication counters on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithTracer sets the tracer. Default: otel.Tracer("statesync").
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Synchronizer) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// Synchronizer is the stateful unit composing the store adapter and the
// URL codec. It is safe for concurrent use.
type Synchronizer struct {
	mu sync.Mutex

	template  *value.Object
	state     *value.Object
	key       string
	namespace string

	store    *storage.Adapter
	location urlcodec.Location
	machine  *fsm.FSM

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// New creates a Synchronizer in the uninitialized status. Its state is a
// copy of the template until Hydrate runs.
func New(cfg Config, opts ...Option) *Synchronizer {
	tmpl := cfg.Template
	if tmpl == nil {
		tmpl = value.NewObject()
	}

	s := &Synchronizer{
		template:  tmpl.Clone(),
		key:       cfg.StorageKey,
		namespace: cfg.Namespace,
		location:  cfg.Location,
		logger:    slog.Default(),
		tracer:    otel.Tracer("statesync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "statesync", "namespace", s.namespace)
	s.state = s.template.Clone()
	s.store = storage.NewAdapter(cfg.Store, s.logger)

	s.machine = fsm.NewFSM(
		string(StatusUninitialized),
		fsm.Events{
			{Name: eventStoreRead, Src: []string{string(StatusUninitialized)}, Dst: string(StatusStorageHydrated)},
			{Name: eventURLRead, Src: []string{string(StatusStorageHydrated)}, Dst: string(StatusURLHydrated)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Debug("hydration status changed", "from", e.Src, "to", e.Dst)
			},
		},
	)
	return s
}

// Namespace returns the URL namespace.
func (s *Synchronizer) Namespace() string { return s.namespace }

// StorageKey returns the storage key.
func (s *Synchronizer) StorageKey() string { return s.key }

// Template returns a copy of the template.
func (s *Synchronizer) Template() *value.Object { return s.template.Clone() }

// Status returns the hydration status.
func (s *Synchronizer) Status() Status {
	return Status(s.machine.Current())
}

// IsHydrated reports whether both hydration steps have completed and
// updates are being published.
func (s *Synchronizer) IsHydrated() bool {
	return s.Status() == StatusURLHydrated
}

// State returns a copy of the current state.
func (s *Synchronizer) State() *value.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Hydrate runs the mount step: stored fields override template defaults,
// then URL fields override stored ones. Hydration itself publishes
// nothing. Calling Hydrate again is a no-op.
func (s *Synchronizer) Hydrate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() != StatusUninitialized {
		return
	}

	ctx, span := s.tracer.Start(ctx, "statesync.Hydrate", trace.WithAttributes(
		attribute.String("statesync.namespace", s.namespace),
		attribute.String("statesync.storage_key", s.key),
	))
	defer span.End()

	s.hydrateFromStore(ctx)
	if err := s.machine.Event(ctx, eventStoreRead); err != nil {
		s.logger.Error("hydration transition failed", "event", eventStoreRead, "error", err)
	}

	s.hydrateFromURL()
	if err := s.machine.Event(ctx, eventURLRead); err != nil {
		s.logger.Error("hydration transition failed", "event", eventURLRead, "error", err)
	}

	span.SetAttributes(attribute.String("statesync.status", s.machine.Current()))
}

func (s *Synchronizer) hydrateFromStore(ctx context.Context) {
	stored, err := s.store.Load(ctx, s.key)
	switch {
	case err != nil:
		outcome := outcomeError
		if synerrors.HasCode(err, "S001") {
			outcome = outcomeUnavailable
		}
		s.metrics.hydration(sourceStore, outcome)
		s.logger.Warn("store hydration skipped", synerrors.Attrs(err)...)
		return
	case stored == nil:
		s.metrics.hydration(sourceStore, outcomeEmpty)
		return
	}

	stored.Range(func(field string, v value.Value) bool {
		tmpl, known := s.template.Get(field)
		if !known {
			s.metrics.skip(sourceStore, reasonUnknown)
			return true
		}
		accepted, ok := coerce.FromStored(v, tmpl)
		if !ok {
			s.metrics.skip(sourceStore, reasonShape)
			s.logger.Debug("stored field skipped",
				synerrors.Attrs(synerrors.New("S003").WithKey(s.key).WithField(field))...)
			return true
		}
		s.state.Set(field, value.Clone(accepted))
		return true
	})
	s.metrics.hydration(sourceStore, outcomeOK)
}

func (s *Synchronizer) hydrateFromURL() {
	if s.location == nil {
		s.metrics.hydration(sourceURL, outcomeUnavailable)
		s.logger.Debug("url hydration skipped", synerrors.Attrs(synerrors.New("S001").WithKey(s.namespace))...)
		return
	}
	u, err := s.location.URL()
	if err != nil {
		s.metrics.hydration(sourceURL, outcomeUnavailable)
		s.logger.Warn("url hydration skipped", synerrors.Attrs(synerrors.New("S001").WithKey(s.namespace).Wrap(err))...)
		return
	}

	partial, skips := urlcodec.DecodeWithSkips(u.Query(), s.template, s.namespace)
	for _, skip := range skips {
		code, reason := "S003", reasonShape
		if skip.Unknown {
			code, reason = "S004", reasonUnknown
		}
		s.metrics.skip(sourceURL, reason)
		s.logger.Debug("url parameter skipped",
			synerrors.Attrs(synerrors.New(code).WithKey(s.namespace).WithField(skip.Field))...)
	}

	s.state = s.state.Merge(partial)
	if partial.Len() == 0 {
		s.metrics.hydration(sourceURL, outcomeEmpty)
		return
	}
	s.metrics.hydration(sourceURL, outcomeOK)
}

// Update merges partial into the state. Fields that are not in the
// template, or whose values are not serializable, are ignored. Once
// hydrated, a change is published: the full state is written to the
// store, then the URL parameters are replaced. An update that leaves the
// state unchanged publishes nothing.
func (s *Synchronizer) Update(ctx context.Context, partial *value.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "statesync.Update", trace.WithAttributes(
		attribute.String("statesync.namespace", s.namespace),
	))
	defer span.End()

	accepted := value.NewObject()
	partial.Range(func(field string, v value.Value) bool {
		if !s.template.Has(field) {
			s.metrics.skip(sourceUpdate, reasonUnknown)
			s.logger.Debug("update field ignored", "field", field, "reason", reasonUnknown)
			return true
		}
		if v != nil && !value.Valid(v) {
			s.metrics.skip(sourceUpdate, reasonShape)
			s.logger.Debug("update field ignored", "field", field, "reason", reasonShape)
			return true
		}
		accepted.Set(field, value.Clone(v))
		return true
	})

	next := s.state.Merge(accepted)
	changed := !value.Equal(next, s.state)
	s.state = next

	span.SetAttributes(attribute.Bool("statesync.changed", changed))
	if !s.IsHydrated() || !changed {
		return
	}
	s.publish(ctx)
}

// Reset restores the template defaults. Once hydrated it also removes the
// stored state and clears this namespace's URL parameters.
func (s *Synchronizer) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = s.template.Clone()
	if !s.IsHydrated() {
		return
	}

	if err := s.store.Remove(ctx, s.key); err != nil {
		s.metrics.publish(sourceStore, outcomeError)
		s.logger.Warn("store remove failed", synerrors.Attrs(err)...)
	} else {
		s.metrics.publish(sourceStore, outcomeOK)
	}
	s.publishURL(nil)
}

// publish writes the state to the store and then to the URL. The caller
// holds s.mu.
func (s *Synchronizer) publish(ctx context.Context) {
	if err := s.store.Write(ctx, s.key, s.state); err != nil {
		outcome := outcomeError
		if synerrors.HasCode(err, "S001") {
			outcome = outcomeUnavailable
		}
		s.metrics.publish(sourceStore, outcome)
		s.logger.Warn("store write failed", synerrors.Attrs(err)...)
	} else {
		s.metrics.publish(sourceStore, outcomeOK)
	}
	s.publishURL(urlcodec.Encode(s.state, s.namespace))
}

func (s *Synchronizer) publishURL(params url.Values) {
	if s.location == nil {
		s.metrics.publish(sourceURL, outcomeUnavailable)
		return
	}
	if err := urlcodec.ReplaceURL(s.location, s.namespace, params); err != nil {
		outcome := outcomeError
		if synerrors.HasCode(err, "S001") {
			outcome = outcomeUnavailable
		}
		s.metrics.publish(sourceURL, outcome)
		s.logger.Warn("url replace failed", synerrors.Attrs(err)...)
		return
	}
	s.metrics.publish(sourceURL, outcomeOK)
}

// ShareableURL returns an absolute URL carrying state under this
// namespace, built from the Location's origin and path. It never touches
// the Location and is available before hydration.
func (s *Synchronizer) ShareableURL(state *value.Object) string {
	var base *url.URL
	if s.location != nil {
		if u, err := s.location.URL(); err == nil {
			base = u
		}
	}
	return urlcodec.ShareableURL(base, state, s.namespace)
}
