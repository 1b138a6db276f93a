package bboardgrpc

import (
	"context"
	"fmt"

	"github.com/blockberries/bboard/types"

	"google.golang.org/grpc"
)

const serviceName = "bboard.v1.NetworkService"

// NetworkServiceServer is the server-side interface for the network
// gRPC service.
type NetworkServiceServer interface {
	// Connector
	APIVersion(context.Context, *Empty) (*APIVersionResponse, error)
	IsEnabled(context.Context, *Empty) (*IsEnabledResponse, error)
	Enable(context.Context, *Empty) (*Empty, error)
	ServiceURIConfig(context.Context, *Empty) (*types.ServiceURIConfig, error)

	// Wallet
	WalletState(context.Context, *Empty) (*types.WalletState, error)
	BalanceTransaction(context.Context, *BalanceRequest) (*types.BalancedTransaction, error)
	SubmitTransaction(context.Context, *types.BalancedTransaction) (*SubmitResponse, error)

	// Indexer
	QueryContractState(context.Context, *ContractRequest) (*QueryResponse, error)
	WatchForTxData(context.Context, *WatchTxRequest) (*types.FinalizedTxData, error)
	WatchContractState(*ContractRequest, grpc.ServerStream) error

	// Proof server
	ProveTransaction(context.Context, *ProveRequest) (*types.UnbalancedTransaction, error)
}

// RegisterNetworkServiceServer registers the NetworkServiceServer on a
// gRPC server.
func RegisterNetworkServiceServer(s *grpc.Server, srv NetworkServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

// unary adapts a typed unary method to a grpc.MethodDesc handler.
func unary[Req any, Resp any](method string, call func(NetworkServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := call(srv.(NetworkServiceServer), ctx, req.(*Req))
			if err != nil {
				return nil, toStatus(err)
			}
			return resp, nil
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, req, info, handler)
	}
}

func handlerWatchContractState(srv any, stream grpc.ServerStream) error {
	req := new(ContractRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	if err := srv.(NetworkServiceServer).WatchContractState(req, stream); err != nil {
		return toStatus(err)
	}
	return nil
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor for the network.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*NetworkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "APIVersion", Handler: unary("APIVersion", NetworkServiceServer.APIVersion)},
		{MethodName: "IsEnabled", Handler: unary("IsEnabled", NetworkServiceServer.IsEnabled)},
		{MethodName: "Enable", Handler: unary("Enable", NetworkServiceServer.Enable)},
		{MethodName: "ServiceURIConfig", Handler: unary("ServiceURIConfig", NetworkServiceServer.ServiceURIConfig)},
		{MethodName: "WalletState", Handler: unary("WalletState", NetworkServiceServer.WalletState)},
		{MethodName: "BalanceTransaction", Handler: unary("BalanceTransaction", NetworkServiceServer.BalanceTransaction)},
		{MethodName: "SubmitTransaction", Handler: unary("SubmitTransaction", NetworkServiceServer.SubmitTransaction)},
		{MethodName: "QueryContractState", Handler: unary("QueryContractState", NetworkServiceServer.QueryContractState)},
		{MethodName: "WatchForTxData", Handler: unary("WatchForTxData", NetworkServiceServer.WatchForTxData)},
		{MethodName: "ProveTransaction", Handler: unary("ProveTransaction", NetworkServiceServer.ProveTransaction)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchContractState",
			Handler:       handlerWatchContractState,
			ServerStreams: true,
			ClientStreams: false,
		},
	},
	Metadata: "bboard/v1/network.cram",
}
