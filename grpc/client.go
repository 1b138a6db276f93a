package bboardgrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/providers"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"google.golang.org/grpc"
)

// Compile-time interface checks.
var (
	_ bboard.PublicDataProvider = (*Client)(nil)
	_ bboard.ProofProvider      = (*Client)(nil)
	_ bboard.ConnectorAPI       = (*remoteConnector)(nil)
	_ bboard.WalletAPI          = (*remoteWallet)(nil)
	_ io.Closer                 = (*Client)(nil)
)

// Client talks to a network served by GRPCServer. It is the public
// data provider and the proof provider; Locator turns it into a wallet
// connector.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a remote network.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(codec),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("bboard client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return fromStatus(c.cc.Invoke(ctx, fullMethod(method), req, resp))
}

// --- Indexer ---

func (c *Client) QueryContractState(ctx context.Context, address types.ContractAddress) (*types.ContractState, error) {
	resp := new(QueryResponse)
	if err := c.invoke(ctx, "QueryContractState", &ContractRequest{Address: address}, resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	return &resp.State, nil
}

func (c *Client) WatchForTxData(ctx context.Context, txHash types.Hash) (types.FinalizedTxData, error) {
	resp := new(types.FinalizedTxData)
	if err := c.invoke(ctx, "WatchForTxData", &WatchTxRequest{TxHash: txHash}, resp); err != nil {
		return types.FinalizedTxData{}, err
	}
	return *resp, nil
}

// ContractStateObservable opens one server stream per subscriber.
// Unsubscribing cancels the stream.
func (c *Client) ContractStateObservable(address types.ContractAddress, cfg types.WatchConfig) stream.Observable[types.ContractState] {
	req := &ContractRequest{Address: address, Watch: cfg.Type}
	return stream.ObservableFunc[types.ContractState](func(o stream.Observer[types.ContractState]) stream.Subscription {
		ctx, cancel := context.WithCancel(context.Background())
		var stopped atomic.Bool
		go func() {
			err := c.watch(ctx, req, func(state types.ContractState) {
				if !stopped.Load() {
					o.OnNext(state)
				}
			})
			if err != nil && !stopped.Load() {
				o.OnError(fmt.Errorf("watch contract %s: %w", address, err))
			}
		}()
		return stream.SubscriptionFunc(func() {
			stopped.Store(true)
			cancel()
		})
	})
}

func (c *Client) watch(ctx context.Context, req *ContractRequest, next func(types.ContractState)) error {
	desc := &serviceDesc.Streams[0]
	cs, err := c.cc.NewStream(ctx, desc, fullMethod(desc.StreamName))
	if err != nil {
		return fromStatus(err)
	}
	if err := cs.SendMsg(req); err != nil {
		return fromStatus(err)
	}
	if err := cs.CloseSend(); err != nil {
		return fromStatus(err)
	}
	for {
		state := new(types.ContractState)
		if err := cs.RecvMsg(state); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fromStatus(err)
		}
		next(*state)
	}
}

// --- Proof server ---

func (c *Client) ProveTx(ctx context.Context, tx types.UnprovenTransaction, cfg types.ZKConfig) (types.UnbalancedTransaction, error) {
	resp := new(types.UnbalancedTransaction)
	if err := c.invoke(ctx, "ProveTransaction", &ProveRequest{Tx: tx, Config: cfg}, resp); err != nil {
		return types.UnbalancedTransaction{}, err
	}
	return *resp, nil
}

// --- Wallet connector ---

// Locator returns a locator that finds the connector served behind c.
// It reports no connector while the server does not answer.
func Locator(c *Client) bboard.ConnectorLocator {
	return bboard.LocatorFunc(func(ctx context.Context) bboard.ConnectorAPI {
		resp := new(APIVersionResponse)
		if err := c.invoke(ctx, "APIVersion", &Empty{}, resp); err != nil {
			return nil
		}
		return &remoteConnector{c: c, version: resp.Version}
	})
}

type remoteConnector struct {
	c       *Client
	version string
}

func (r *remoteConnector) APIVersion() string { return r.version }

func (r *remoteConnector) IsEnabled(ctx context.Context) (bool, error) {
	resp := new(IsEnabledResponse)
	if err := r.c.invoke(ctx, "IsEnabled", &Empty{}, resp); err != nil {
		return false, err
	}
	return resp.Enabled, nil
}

func (r *remoteConnector) Enable(ctx context.Context) (bboard.WalletAPI, error) {
	if err := r.c.invoke(ctx, "Enable", &Empty{}, new(Empty)); err != nil {
		return nil, err
	}
	return &remoteWallet{c: r.c}, nil
}

func (r *remoteConnector) ServiceURIConfig(ctx context.Context) (types.ServiceURIConfig, error) {
	resp := new(types.ServiceURIConfig)
	if err := r.c.invoke(ctx, "ServiceURIConfig", &Empty{}, resp); err != nil {
		return types.ServiceURIConfig{}, err
	}
	return *resp, nil
}

type remoteWallet struct{ c *Client }

func (w *remoteWallet) State(ctx context.Context) (types.WalletState, error) {
	resp := new(types.WalletState)
	if err := w.c.invoke(ctx, "WalletState", &Empty{}, resp); err != nil {
		return types.WalletState{}, err
	}
	return *resp, nil
}

func (w *remoteWallet) BalanceAndProveTransaction(ctx context.Context, tx types.UnbalancedTransaction, newCoins []types.CoinInfo) (types.BalancedTransaction, error) {
	resp := new(types.BalancedTransaction)
	if err := w.c.invoke(ctx, "BalanceTransaction", &BalanceRequest{Tx: tx, NewCoins: newCoins}, resp); err != nil {
		return types.BalancedTransaction{}, err
	}
	return *resp, nil
}

func (w *remoteWallet) SubmitTransaction(ctx context.Context, tx types.BalancedTransaction) (types.TransactionID, error) {
	resp := new(SubmitResponse)
	if err := w.c.invoke(ctx, "SubmitTransaction", &tx, resp); err != nil {
		return "", err
	}
	return resp.TxID, nil
}

// --- Provider factories ---

// PublicDataFactory dials the indexer named in the service
// configuration.
func PublicDataFactory(opts ...grpc.DialOption) providers.PublicDataFactory {
	return func(ctx context.Context, uris types.ServiceURIConfig) (bboard.PublicDataProvider, error) {
		return Dial(ctx, Target(uris.IndexerURI), opts...)
	}
}

// ProofFactory dials the proof server named in the service
// configuration.
func ProofFactory(opts ...grpc.DialOption) providers.ProofFactory {
	return func(ctx context.Context, uris types.ServiceURIConfig) (bboard.ProofProvider, error) {
		return Dial(ctx, Target(uris.ProverServerURI), opts...)
	}
}

// Target turns a service URI into a dial target. URIs with a scheme
// are reduced to their host; anything else is used as is.
func Target(uri string) string {
	if !strings.Contains(uri, "://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	return u.Host
}
