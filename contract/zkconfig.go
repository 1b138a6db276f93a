package contract

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"
)

// Compile-time interface check.
var _ bboard.ZKConfigProvider = (*ZKConfigProvider)(nil)

// ZKConfigProvider serves the key material of the board circuits.
// Keys are derived from a seed so that every client and network built
// from the same seed agree on them.
type ZKConfigProvider struct {
	configs map[string]types.ZKConfig
}

// NewZKConfigProvider derives the circuit keys from seed.
func NewZKConfigProvider(seed string) *ZKConfigProvider {
	p := &ZKConfigProvider{configs: make(map[string]types.ZKConfig, len(Circuits))}
	for _, c := range Circuits {
		p.configs[c] = types.ZKConfig{
			Circuit:     c,
			ProverKey:   deriveKey(seed, "prover", c),
			VerifierKey: deriveKey(seed, "verifier", c),
		}
	}
	return p
}

func (p *ZKConfigProvider) Get(_ context.Context, circuit string) (types.ZKConfig, error) {
	cfg, ok := p.configs[circuit]
	if !ok {
		return types.ZKConfig{}, fmt.Errorf("no zk config for circuit %q", circuit)
	}
	return cfg, nil
}

// Operations returns the verifier keys a deployment records on chain.
func Operations(ctx context.Context, zk bboard.ZKConfigProvider) ([]types.Operation, error) {
	ops := make([]types.Operation, 0, len(Circuits))
	for _, c := range Circuits {
		cfg, err := zk.Get(ctx, c)
		if err != nil {
			return nil, err
		}
		ops = append(ops, types.Operation{Circuit: c, VerifierKey: cfg.VerifierKey})
	}
	return ops, nil
}

func deriveKey(seed, kind, circuit string) []byte {
	sum := sha256.Sum256([]byte(seed + "/" + kind + "/" + circuit))
	return sum[:]
}
