// Package providers bootstraps the providers a board session uses from
// a wallet connector, exactly once per process.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Connector handshake defaults.
const (
	DefaultCompatibleVersion = "1.x"
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultDetectTimeout     = time.Second
	DefaultEnableTimeout     = 5 * time.Second
)

// ErrClosed is returned to callers waiting on an initialization that
// Close overtook. Its providers are released instead of cached.
var ErrClosed = errors.New("providers: bootstrap closed during initialization")

// PrivateStateFactory opens the private state store.
type PrivateStateFactory func(ctx context.Context) (bboard.PrivateStateProvider, error)

// ZKConfigFactory creates the zk config provider.
type ZKConfigFactory func(ctx context.Context) (bboard.ZKConfigProvider, error)

// PublicDataFactory connects to the indexer named in uris.
type PublicDataFactory func(ctx context.Context, uris types.ServiceURIConfig) (bboard.PublicDataProvider, error)

// ProofFactory connects to the proof server named in uris.
type ProofFactory func(ctx context.Context, uris types.ServiceURIConfig) (bboard.ProofProvider, error)

// Config configures a Bootstrap. Zero durations and an empty version
// take the defaults above.
type Config struct {
	Locator           bboard.ConnectorLocator
	CompatibleVersion string
	PollInterval      time.Duration
	DetectTimeout     time.Duration
	EnableTimeout     time.Duration

	PrivateState PrivateStateFactory
	ZKConfig     ZKConfigFactory
	PublicData   PublicDataFactory
	Proof        ProofFactory
}

func (c Config) withDefaults() Config {
	if c.CompatibleVersion == "" {
		c.CompatibleVersion = DefaultCompatibleVersion
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DetectTimeout <= 0 {
		c.DetectTimeout = DefaultDetectTimeout
	}
	if c.EnableTimeout <= 0 {
		c.EnableTimeout = DefaultEnableTimeout
	}
	return c
}

// Bootstrap initializes the providers once and hands the same bundle
// to every caller. A failed initialization is not remembered, so a
// later call tries again.
type Bootstrap struct {
	cfg Config
	log zerolog.Logger

	group singleflight.Group

	mu        sync.Mutex
	providers *bboard.Providers
	closers   []io.Closer
	// epoch counts Close calls.
	epoch uint64
}

// New creates a Bootstrap. Nothing is connected until GetProviders.
func New(cfg Config, log zerolog.Logger) *Bootstrap {
	return &Bootstrap{cfg: cfg.withDefaults(), log: log}
}

// GetProviders returns the provider bundle, initializing it on first
// use. Concurrent callers share one initialization. ctx bounds only
// the caller's wait; the shared initialization is not cancelled by it.
func (b *Bootstrap) GetProviders(ctx context.Context) (bboard.Providers, error) {
	if p, ok := b.cached(); ok {
		return p, nil
	}

	ch := b.group.DoChan("providers", func() (any, error) {
		b.mu.Lock()
		if b.providers != nil {
			p := *b.providers
			b.mu.Unlock()
			return p, nil
		}
		epoch := b.epoch
		b.mu.Unlock()

		p, closers, err := b.initialize(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		if b.epoch != epoch {
			b.mu.Unlock()
			b.log.Debug().Msg("providers closed during initialization")
			if err := closeAll(closers); err != nil {
				return nil, multierror.Append(ErrClosed, err)
			}
			return nil, ErrClosed
		}
		b.providers = &p
		b.closers = closers
		b.mu.Unlock()
		return p, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return bboard.Providers{}, r.Err
		}
		return r.Val.(bboard.Providers), nil
	case <-ctx.Done():
		return bboard.Providers{}, ctx.Err()
	}
}

func (b *Bootstrap) cached() (bboard.Providers, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.providers == nil {
		return bboard.Providers{}, false
	}
	return *b.providers, true
}

func (b *Bootstrap) initialize(ctx context.Context) (p bboard.Providers, closers []io.Closer, err error) {
	defer func() {
		if err != nil {
			closeAll(closers)
			closers = nil
		}
	}()
	track := func(v any) {
		if c, ok := v.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	if b.cfg.Locator == nil || b.cfg.PrivateState == nil || b.cfg.ZKConfig == nil || b.cfg.Proof == nil || b.cfg.PublicData == nil {
		return p, closers, errors.New("providers: incomplete bootstrap configuration")
	}

	wallet, uris, err := ConnectToWallet(ctx, b.cfg, b.log)
	if err != nil {
		return p, closers, err
	}
	track(wallet)
	state, err := wallet.State(ctx)
	if err != nil {
		return p, closers, fmt.Errorf("wallet state: %w", err)
	}

	if p.PrivateState, err = b.cfg.PrivateState(ctx); err != nil {
		return p, closers, fmt.Errorf("private state provider: %w", err)
	}
	track(p.PrivateState)
	if p.ZKConfig, err = b.cfg.ZKConfig(ctx); err != nil {
		return p, closers, fmt.Errorf("zk config provider: %w", err)
	}
	track(p.ZKConfig)
	if p.Proof, err = b.cfg.Proof(ctx, uris); err != nil {
		return p, closers, fmt.Errorf("proof provider: %w", err)
	}
	track(p.Proof)
	if p.PublicData, err = b.cfg.PublicData(ctx, uris); err != nil {
		return p, closers, fmt.Errorf("public data provider: %w", err)
	}
	track(p.PublicData)

	p.Wallet, p.Midnight = WalletProviders(state.CoinPublicKey, wallet)
	b.log.Info().Str("wallet", state.Address).Msg("providers initialized")
	return p, closers, nil
}

// Close releases every closable provider opened by GetProviders. An
// initialization still in flight fails with ErrClosed and releases
// what it opened. The next GetProviders initializes again.
func (b *Bootstrap) Close() error {
	b.mu.Lock()
	closers := b.closers
	b.closers = nil
	b.providers = nil
	b.epoch++
	b.mu.Unlock()
	b.group.Forget("providers")
	return closeAll(closers)
}

func closeAll(closers []io.Closer) error {
	var result *multierror.Error
	seen := make(map[io.Closer]bool, len(closers))
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if reflect.TypeOf(c).Comparable() {
			if seen[c] {
				continue
			}
			seen[c] = true
		}
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
