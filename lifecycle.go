package shieldcache

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Lifecycle states. A fresh controller starts out as StateNew; a
// superseded generation simply disappears when its entries are evicted.
const (
	StateNew        = "new"
	StateInstalling = "installing"
	StateWaiting    = "waiting"
	StateActive     = "active"
)

// Lifecycle drives the install/activate transitions of the cache
// generation this build serves, and evicts superseded generations.
type Lifecycle struct {
	cache    *GenerationCache
	target   string
	assets   []string
	notifier *Notifier
	log      zerolog.Logger

	mu      sync.Mutex
	state   string
	current string
}

func NewLifecycle(cache *GenerationCache, target string, assets []string, notifier *Notifier, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		cache:    cache,
		target:   target,
		assets:   assets,
		notifier: notifier,
		log:      logger.With().Str("generation", target).Logger(),
		state:    StateNew,
	}
}

// Current returns the id of the active generation, or the empty string if
// no generation has been activated yet.
func (l *Lifecycle) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Lifecycle) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Install opens the target generation and populates it with the asset
// manifest. Population failure is fatal to the install: the half-built
// generation is discarded and the previously active generation, if any,
// keeps serving. On success the new generation activates immediately,
// skipping the waiting state, so the latest logic always runs.
func (l *Lifecycle) Install(ctx context.Context) error {
	l.setState(StateInstalling)
	l.log.Debug().Strs("assets", l.assets).Msg("Installing")
	if err := l.cache.Open(l.target); err != nil {
		l.rollback()
		return err
	}
	if err := l.cache.Populate(ctx, l.target, l.assets); err != nil {
		l.log.Error().Err(err).Msg("Install failed, discarding generation")
		if delErr := l.cache.Delete(l.target); delErr != nil {
			l.log.Error().Err(delErr).Msg("Could not discard generation")
		}
		l.rollback()
		return err
	}
	l.setState(StateWaiting)
	return l.Activate(ctx)
}

// Activate marks the target generation current, takes over connected
// clients, and deletes every stale generation. Activation is not complete
// until eviction finishes.
func (l *Lifecycle) Activate(ctx context.Context) error {
	l.mu.Lock()
	l.current = l.target
	l.state = StateActive
	l.mu.Unlock()
	l.log.Debug().Msg("Activated")

	if l.notifier != nil {
		l.notifier.Claim(l.target)
	}

	gens, err := l.cache.Generations()
	if err != nil {
		return err
	}
	for _, gen := range gens {
		if gen == l.target {
			continue
		}
		l.log.Debug().Str("stale", gen).Msg("Evicting stale generation")
		if err := l.cache.Delete(gen); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lifecycle) setState(state string) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}

// rollback restores the state after a failed install: active if a previous
// generation is still serving, new otherwise.
func (l *Lifecycle) rollback() {
	l.mu.Lock()
	if l.current != "" {
		l.state = StateActive
	} else {
		l.state = StateNew
	}
	l.mu.Unlock()
}
