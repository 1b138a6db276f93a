package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"

	"github.com/Masterminds/semver"
	"github.com/rs/zerolog"
)

// ConnectToWallet locates a compatible wallet connector, asks it to
// enable the DApp and returns the authorized wallet together with the
// service configuration the connector reports.
func ConnectToWallet(ctx context.Context, cfg Config, log zerolog.Logger) (bboard.WalletAPI, types.ServiceURIConfig, error) {
	cfg = cfg.withDefaults()

	connector, err := locate(ctx, cfg, log)
	if err != nil {
		return nil, types.ServiceURIConfig{}, err
	}
	if err := checkVersion(cfg.CompatibleVersion, connector.APIVersion()); err != nil {
		log.Error().
			Str("expected", cfg.CompatibleVersion).
			Str("actual", connector.APIVersion()).
			Msg("Incompatible version of wallet connector API")
		return nil, types.ServiceURIConfig{}, err
	}
	log.Info().Str("apiVersion", connector.APIVersion()).Msg("Compatible wallet connector API found. Connecting.")

	enabled, err := withTimeout(ctx, cfg.EnableTimeout, connector.IsEnabled)
	if err != nil {
		log.Error().Err(err).Msg("Wallet connector API has failed to respond")
		return nil, types.ServiceURIConfig{}, err
	}
	log.Info().Bool("enabled", enabled).Msg("Wallet connector API enabled status")

	wallet, err := withTimeout(ctx, cfg.EnableTimeout, connector.Enable)
	if err != nil {
		log.Error().Err(err).Msg("Unable to enable connector API")
		if errors.Is(err, bboard.ErrConnectionTimeout) || errors.Is(err, bboard.ErrNotAuthorized) || ctx.Err() != nil {
			return nil, types.ServiceURIConfig{}, err
		}
		return nil, types.ServiceURIConfig{}, fmt.Errorf("%w: %v", bboard.ErrNotAuthorized, err)
	}

	uris, err := connector.ServiceURIConfig(ctx)
	if err != nil {
		return nil, types.ServiceURIConfig{}, fmt.Errorf("service uri config: %w", err)
	}
	log.Info().Msg("Connected to wallet connector API and retrieved service configuration")
	return wallet, uris, nil
}

// locate polls the locator until it returns a connector or the
// detection timeout expires.
func locate(parent context.Context, cfg Config, log zerolog.Logger) (bboard.ConnectorAPI, error) {
	ctx, cancel := context.WithTimeout(parent, cfg.DetectTimeout)
	defer cancel()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			connector := cfg.Locator.Locate(ctx)
			log.Debug().Bool("found", connector != nil).Msg("Check for wallet connector API")
			if connector != nil {
				return connector, nil
			}
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return nil, err
			}
			log.Error().Msg("Could not find wallet connector API")
			return nil, bboard.ErrConnectorNotFound
		}
	}
}

// checkVersion reports an IncompatibleVersionError unless actual
// satisfies the constraint required.
func checkVersion(required, actual string) error {
	constraint, err := semver.NewConstraint(required)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", required, err)
	}
	v, err := semver.NewVersion(actual)
	if err != nil {
		return &bboard.IncompatibleVersionError{Required: required, Actual: actual}
	}
	if !constraint.Check(v) {
		return &bboard.IncompatibleVersionError{Required: required, Actual: actual}
	}
	return nil
}

// withTimeout runs fn and gives up with ErrConnectionTimeout after d,
// even if fn ignores its context. Cancellation of parent is reported
// as the parent's error.
func withTimeout[T any](parent context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{value: v, err: err}
	}()

	var zero T
	select {
	case r := <-ch:
		if r.err == nil {
			return r.value, nil
		}
		if err := parent.Err(); err != nil {
			return zero, err
		}
		if errors.Is(r.err, context.DeadlineExceeded) {
			return zero, bboard.ErrConnectionTimeout
		}
		return zero, r.err
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			return zero, err
		}
		return zero, bboard.ErrConnectionTimeout
	}
}
