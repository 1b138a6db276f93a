package devnet

import (
	"context"
	"fmt"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"
)

// Compile-time interface check.
var _ bboard.ProofProvider = (*Prover)(nil)

// Prover is the network's proof server.
type Prover struct{}

// NewProver creates a proof server.
func NewProver() *Prover { return &Prover{} }

func (p *Prover) ProveTx(_ context.Context, tx types.UnprovenTransaction, cfg types.ZKConfig) (types.UnbalancedTransaction, error) {
	if cfg.Circuit != tx.Tx.Circuit {
		return types.UnbalancedTransaction{}, fmt.Errorf("zk config for %q cannot prove %q", cfg.Circuit, tx.Tx.Circuit)
	}
	if len(cfg.ProverKey) == 0 {
		return types.UnbalancedTransaction{}, fmt.Errorf("missing prover key for %q", cfg.Circuit)
	}
	proof, err := ProofDigest(cfg.VerifierKey, tx.Tx)
	if err != nil {
		return types.UnbalancedTransaction{}, err
	}
	return types.UnbalancedTransaction{Tx: tx.Tx, Proof: proof}, nil
}
