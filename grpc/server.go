package bboardgrpc

import (
	"context"
	"net"
	"sync"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/devnet"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// Compile-time interface check.
var _ NetworkServiceServer = (*GRPCServer)(nil)

// GRPCServer exposes a network, its wallet connector and a proof
// server as one gRPC service. Domain types are serialized directly
// via cramberry.
type GRPCServer struct {
	net       *devnet.Network
	connector bboard.ConnectorAPI
	prover    bboard.ProofProvider
	log       zerolog.Logger

	mu     sync.Mutex
	wallet bboard.WalletAPI
}

// NewGRPCServer creates a gRPC server for network. Wallet RPCs are
// served once a client enabled the connector.
func NewGRPCServer(network *devnet.Network, connector bboard.ConnectorAPI, prover bboard.ProofProvider, log zerolog.Logger) *GRPCServer {
	return &GRPCServer{
		net:       network,
		connector: connector,
		prover:    prover,
		log:       log.With().Str("component", "grpc").Logger(),
	}
}

// Register adds the network service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterNetworkServiceServer(gs, s)
}

// NewServer creates a gRPC server with the network service registered
// and failed calls logged.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logUnary))
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs
}

// Serve starts the gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("serving network")
	return s.NewServer(opts...).Serve(lis)
}

// ServiceURIs returns the service configuration of a network served
// at addr: every service is reached through the same listener.
func ServiceURIs(addr string) types.ServiceURIConfig {
	return types.ServiceURIConfig{
		IndexerURI:       addr,
		IndexerWSURI:     addr,
		ProverServerURI:  addr,
		SubstrateNodeURI: addr,
	}
}

func (s *GRPCServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.log.Debug().Err(err).Str("method", info.FullMethod).Msg("rpc failed")
	} else {
		s.log.Trace().Str("method", info.FullMethod).Msg("rpc")
	}
	return resp, err
}

func (s *GRPCServer) enabledWallet() (bboard.WalletAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wallet == nil {
		return nil, errNotEnabled
	}
	return s.wallet, nil
}

// --- Connector RPCs ---

func (s *GRPCServer) APIVersion(_ context.Context, _ *Empty) (*APIVersionResponse, error) {
	return &APIVersionResponse{Version: s.connector.APIVersion()}, nil
}

func (s *GRPCServer) IsEnabled(ctx context.Context, _ *Empty) (*IsEnabledResponse, error) {
	enabled, err := s.connector.IsEnabled(ctx)
	if err != nil {
		return nil, err
	}
	return &IsEnabledResponse{Enabled: enabled}, nil
}

func (s *GRPCServer) Enable(ctx context.Context, _ *Empty) (*Empty, error) {
	wallet, err := s.connector.Enable(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.wallet = wallet
	s.mu.Unlock()
	s.log.Info().Msg("wallet connector enabled")
	return &Empty{}, nil
}

func (s *GRPCServer) ServiceURIConfig(ctx context.Context, _ *Empty) (*types.ServiceURIConfig, error) {
	uris, err := s.connector.ServiceURIConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &uris, nil
}

// --- Wallet RPCs ---

func (s *GRPCServer) WalletState(ctx context.Context, _ *Empty) (*types.WalletState, error) {
	wallet, err := s.enabledWallet()
	if err != nil {
		return nil, err
	}
	state, err := wallet.State(ctx)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *GRPCServer) BalanceTransaction(ctx context.Context, req *BalanceRequest) (*types.BalancedTransaction, error) {
	wallet, err := s.enabledWallet()
	if err != nil {
		return nil, err
	}
	tx, err := wallet.BalanceAndProveTransaction(ctx, req.Tx, req.NewCoins)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *GRPCServer) SubmitTransaction(ctx context.Context, tx *types.BalancedTransaction) (*SubmitResponse, error) {
	wallet, err := s.enabledWallet()
	if err != nil {
		return nil, err
	}
	id, err := wallet.SubmitTransaction(ctx, *tx)
	if err != nil {
		return nil, err
	}
	return &SubmitResponse{TxID: id}, nil
}

// --- Indexer RPCs ---

func (s *GRPCServer) QueryContractState(ctx context.Context, req *ContractRequest) (*QueryResponse, error) {
	state, err := s.net.QueryContractState(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &QueryResponse{}, nil
	}
	return &QueryResponse{Found: true, State: *state}, nil
}

func (s *GRPCServer) WatchForTxData(ctx context.Context, req *WatchTxRequest) (*types.FinalizedTxData, error) {
	final, err := s.net.WatchForTxData(ctx, req.TxHash)
	if err != nil {
		return nil, err
	}
	return &final, nil
}

// WatchContractState sends every state of the contract until the
// client goes away.
func (s *GRPCServer) WatchContractState(req *ContractRequest, ss grpc.ServerStream) error {
	ctx := ss.Context()
	src := s.net.ContractStateObservable(req.Address, types.WatchConfig{Type: req.Watch})
	values, errc := stream.Values(ctx, src)
	for state := range values {
		if err := ss.SendMsg(&state); err != nil {
			return err
		}
	}
	select {
	case err := <-errc:
		return err
	default:
		return ctx.Err()
	}
}

// --- Proof server RPCs ---

func (s *GRPCServer) ProveTransaction(ctx context.Context, req *ProveRequest) (*types.UnbalancedTransaction, error) {
	tx, err := s.prover.ProveTx(ctx, req.Tx, req.Config)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
