// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import (
	"sync"

	"github.com/go-logr/logr"
	"go.uber.org/atomic"
	"golang.org/x/exp/etw/guid"
	"golang.org/x/xerrors"
)

// Provider is a registered source of events. It is identified by a name and
// a GUID which should always map 1:1 to each other.
//
// A Provider is safe for concurrent use. Close it when done; Close waits for
// writes in progress and may be called more than once.
type Provider struct {
	id       guid.GUID
	name     string
	backend  Backend
	callback EnableCallback
	log      logr.Logger
	metadata []byte

	mu     sync.RWMutex // held for reading by writes, for writing by Close
	handle RegHandle
	closed bool

	// Enablement as last reported by the controller.
	enabled    atomic.Bool
	level      atomic.Uint32
	keywordAny atomic.Uint64
	keywordAll atomic.Uint64
}

type providerOptions struct {
	id       *guid.GUID
	group    *guid.GUID
	callback EnableCallback
	backend  Backend
	log      logr.Logger
}

// ProviderOpt configures NewProvider.
type ProviderOpt func(*providerOptions)

// WithID sets the provider GUID, for a provider that must keep an existing
// ID. By default the ID is derived from the name with
// guid.ProviderIDFromName.
func WithID(id guid.GUID) ProviderOpt {
	return func(o *providerOptions) { o.id = &id }
}

// WithGroup places the provider in a provider group.
func WithGroup(group guid.GUID) ProviderOpt {
	return func(o *providerOptions) { o.group = &group }
}

// WithCallback sets a function called after each enablement change.
func WithCallback(cb EnableCallback) ProviderOpt {
	return func(o *providerOptions) { o.callback = cb }
}

// WithBackend registers the provider with b instead of DefaultBackend.
func WithBackend(b Backend) ProviderOpt {
	return func(o *providerOptions) { o.backend = b }
}

// WithLogger sets the logger the provider reports its own problems to.
// By default they are discarded.
func WithLogger(l logr.Logger) ProviderOpt {
	return func(o *providerOptions) { o.log = l }
}

// NewProvider registers a provider. If the tracing subsystem refuses, the
// error is a *RegistrationError; the caller may carry on without tracing.
func NewProvider(name string, opts ...ProviderOpt) (*Provider, error) {
	o := providerOptions{
		backend: defaultBackend,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := validateName(name); err != nil {
		return nil, xerrors.Errorf("provider: %w", err)
	}
	id := guid.ProviderIDFromName(name)
	if o.id != nil {
		id = *o.id
	}
	metadata, err := encodeProviderMetadata(name, id, o.group)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		id:       id,
		name:     name,
		backend:  o.backend,
		callback: o.callback,
		log:      o.log.WithValues("provider", name),
		metadata: metadata,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle, err = p.backend.Register(name, id, p.enableCallback)
	if err != nil {
		return nil, &RegistrationError{Provider: name, Code: errorCode(err), Err: err}
	}
	if err := p.backend.SetTraits(p.handle, p.metadata); err != nil {
		// Events are still written; consumers may see the provider by ID
		// only, or misread the metadata descriptor.
		p.log.Info("setting provider traits failed", "error", err)
	}
	p.log.V(1).Info("registered", "id", id)
	return p, nil
}

// enableCallback records the enablement state reported by the controller.
func (p *Provider) enableCallback(sourceID guid.GUID, state ProviderState, level Level, matchAny, matchAll uint64) {
	switch state {
	case ProviderStateDisable:
		p.enabled.Store(false)
	case ProviderStateEnable:
		p.level.Store(uint32(level))
		p.keywordAny.Store(matchAny)
		p.keywordAll.Store(matchAll)
		p.enabled.Store(true)
	}
	p.log.V(2).Info("enablement changed", "state", state, "level", level, "any", matchAny, "all", matchAll)
	if p.callback != nil {
		p.callback(sourceID, state, level, matchAny, matchAll)
	}
}

// ID returns the provider GUID.
func (p *Provider) ID() guid.GUID {
	if p == nil {
		return guid.GUID{}
	}
	return p.id
}

func (p *Provider) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

func (p *Provider) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.name + "{" + p.id.String() + "}"
}

// Close unregisters the provider. Calling Close again does nothing.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.enabled.Store(false)
	if err := p.backend.Unregister(p.handle); err != nil {
		return xerrors.Errorf("etw: unregistering provider %q: %w", p.name, err)
	}
	p.log.V(1).Info("unregistered")
	return nil
}

// IsEnabled reports whether any session is listening to the provider.
func (p *Provider) IsEnabled() bool {
	return p.IsEnabledForLevelAndKeywords(LevelAlways, 0)
}

// IsEnabledForLevel reports whether any session is listening to events at
// level l.
func (p *Provider) IsEnabledForLevel(l Level) bool {
	return p.IsEnabledForLevelAndKeywords(l, 0)
}

// IsEnabledForLevelAndKeywords reports whether any session is listening to
// events at level l with keyword mask keywords. Emit checks this itself;
// call it directly to skip expensive work preparing values.
//
// The state is updated asynchronously by the controller, so the answer may be
// briefly stale.
func (p *Provider) IsEnabledForLevelAndKeywords(l Level, keywords uint64) bool {
	if p == nil || !p.enabled.Load() {
		return false
	}
	// A session level of 0 means every level.
	if sessionLevel := Level(p.level.Load()); sessionLevel != 0 && l > sessionLevel {
		return false
	}
	if keywords == 0 {
		return true
	}
	if matchAny := p.keywordAny.Load(); matchAny != 0 && keywords&matchAny == 0 {
		return false
	}
	matchAll := p.keywordAll.Load()
	return keywords&matchAll == matchAll
}
