package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/config"
	"github.com/blockberries/bboard/contract"
	"github.com/blockberries/bboard/devnet"
	bboardgrpc "github.com/blockberries/bboard/grpc"
	"github.com/blockberries/bboard/local"
	"github.com/blockberries/bboard/privatestate"
	"github.com/blockberries/bboard/providers"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// environment is the network a command talks to and the bootstrap of
// its providers.
type environment struct {
	boot    *providers.Bootstrap
	public  bboard.PublicDataProvider
	closers []io.Closer
}

// newEnvironment connects to the network named by cfg. A standalone
// network runs in process.
func newEnvironment(ctx context.Context, cfg config.Config, log zerolog.Logger) (*environment, error) {
	env := &environment{}
	var pcfg providers.Config

	if cfg.Remote() {
		creds := grpc.WithTransportCredentials(insecure.NewCredentials())
		client, err := bboardgrpc.Dial(ctx, cfg.ConnectorAddress, creds)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, client)
		env.public = client
		pcfg = providers.Config{
			Locator: bboardgrpc.Locator(client),
			ZKConfig: func(context.Context) (bboard.ZKConfigProvider, error) {
				return contract.NewZKConfigProvider(devnet.DefaultConfig().ZKSeed), nil
			},
			PublicData: bboardgrpc.PublicDataFactory(creds),
			Proof:      bboardgrpc.ProofFactory(creds),
		}
	} else {
		stack := local.NewStack(devnet.DefaultConfig(), log)
		env.public = stack.Network
		pcfg = stack.BootstrapConfig(nil)
	}

	pcfg.PrivateState = privateStateFactory(cfg)
	pcfg.CompatibleVersion = cfg.CompatibleVersion
	pcfg.PollInterval = cfg.PollInterval
	pcfg.DetectTimeout = cfg.DetectTimeout
	pcfg.EnableTimeout = cfg.EnableTimeout
	env.boot = providers.New(pcfg, log)
	return env, nil
}

func privateStateFactory(cfg config.Config) providers.PrivateStateFactory {
	return func(ctx context.Context) (bboard.PrivateStateProvider, error) {
		if cfg.StatePath == "" {
			return privatestate.NewMemoryStore(), nil
		}
		return privatestate.OpenBolt(ctx, cfg.StatePath, cfg.StoreName)
	}
}

// Close releases the providers and the network connection.
func (e *environment) Close() error {
	var result *multierror.Error
	if err := e.boot.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// serveMetrics serves prometheus metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, log zerolog.Logger) {
	if addr == "" {
		return
	}
	sm := http.NewServeMux()
	sm.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           sm,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		log.Debug().Str("addr", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(fmt.Errorf("metrics server: %w", err)).Msg("Metrics server stopped")
		}
	}()
}
