// Package pb defines the gRPC surface of the exchange. Messages are
// plain structs carried by the JSON codec; amounts cross the wire as
// decimal strings.
package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Request/Response message types

type PlaceOrderRequest struct {
	UserId string `json:"user_id"`
	Market string `json:"market"`
	Side   string `json:"side"`
	Type   string `json:"type"`
	Price  string `json:"price,omitempty"`
	Qty    string `json:"quantity"`

	// MaxSpend bounds the quote spend of a market buy.
	MaxSpend string `json:"max_spend,omitempty"`
}

type PlaceOrderResponse struct {
	Order  *Order   `json:"order"`
	Trades []*Trade `json:"trades,omitempty"`
}

type Order struct {
	Id        string `json:"id"`
	UserId    string `json:"user_id"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Price     string `json:"price,omitempty"`
	Qty       string `json:"quantity"`
	Filled    string `json:"filled"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type Trade struct {
	Id           string `json:"id"`
	Market       string `json:"market"`
	MakerOrderId string `json:"maker_order_id"`
	TakerOrderId string `json:"taker_order_id"`
	Price        string `json:"price"`
	Qty          string `json:"quantity"`
	Side         string `json:"side"`
	Seq          uint64 `json:"seq"`
	Time         string `json:"time"`
}

type CancelOrderRequest struct {
	OrderId string `json:"order_id"`
	UserId  string `json:"user_id"`
}

type CancelOrderResponse struct {
	Order *Order `json:"order"`
}

type GetOrderBookRequest struct {
	Market string `json:"market"`
	Depth  int32  `json:"depth"`
}

type Level struct {
	Price      string `json:"price"`
	Qty        string `json:"quantity"`
	OrderCount int32  `json:"order_count"`
}

type GetOrderBookResponse struct {
	Market string   `json:"market"`
	Bids   []*Level `json:"bids"`
	Asks   []*Level `json:"asks"`
}

type GetOrderRequest struct {
	OrderId string `json:"order_id"`
}

type GetOrderResponse struct {
	Order *Order `json:"order"`
}

type DepositRequest struct {
	UserId string `json:"user_id"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type DepositResponse struct {
	Balance *Balance `json:"balance"`
}

type GetBalanceRequest struct {
	UserId string `json:"user_id"`
	Asset  string `json:"asset"`
}

type Balance struct {
	Asset     string `json:"asset"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}

type GetBalanceResponse struct {
	Balance *Balance `json:"balance"`
}

type GetTradesRequest struct {
	Market string `json:"market"`
	Limit  int32  `json:"limit"`
}

type GetTradesResponse struct {
	Trades []*Trade `json:"trades"`
}

type GetMarketsRequest struct{}

type Market struct {
	Symbol      string `json:"symbol"`
	BaseAsset   string `json:"base_asset"`
	QuoteAsset  string `json:"quote_asset"`
	TickSize    string `json:"tick_size"`
	LotSize     string `json:"lot_size"`
	MakerFeeBps int32  `json:"maker_fee_bps"`
	TakerFeeBps int32  `json:"taker_fee_bps"`
}

type GetMarketsResponse struct {
	Markets []*Market `json:"markets"`
}

type GetSettlementRequest struct {
	SettlementId string `json:"settlement_id"`
}

type SettlementLeg struct {
	Asset    string `json:"asset"`
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	Amount   string `json:"amount"`
}

type GetSettlementResponse struct {
	Id      string           `json:"id"`
	TradeId string           `json:"trade_id"`
	Market  string           `json:"market"`
	Legs    []*SettlementLeg `json:"legs"`
	Seq     uint64           `json:"seq"`
	Time    string           `json:"time"`
}

const (
	ExchangeService_PlaceOrder_FullMethodName    = "/matchbook.ExchangeService/PlaceOrder"
	ExchangeService_CancelOrder_FullMethodName   = "/matchbook.ExchangeService/CancelOrder"
	ExchangeService_GetOrderBook_FullMethodName  = "/matchbook.ExchangeService/GetOrderBook"
	ExchangeService_GetOrder_FullMethodName      = "/matchbook.ExchangeService/GetOrder"
	ExchangeService_Deposit_FullMethodName       = "/matchbook.ExchangeService/Deposit"
	ExchangeService_GetBalance_FullMethodName    = "/matchbook.ExchangeService/GetBalance"
	ExchangeService_GetTrades_FullMethodName     = "/matchbook.ExchangeService/GetTrades"
	ExchangeService_GetMarkets_FullMethodName    = "/matchbook.ExchangeService/GetMarkets"
	ExchangeService_GetSettlement_FullMethodName = "/matchbook.ExchangeService/GetSettlement"
)

// ExchangeServiceServer is the server API for ExchangeService service.
type ExchangeServiceServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	GetOrderBook(context.Context, *GetOrderBookRequest) (*GetOrderBookResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	Deposit(context.Context, *DepositRequest) (*DepositResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	GetTrades(context.Context, *GetTradesRequest) (*GetTradesResponse, error)
	GetMarkets(context.Context, *GetMarketsRequest) (*GetMarketsResponse, error)
	GetSettlement(context.Context, *GetSettlementRequest) (*GetSettlementResponse, error)
}

// UnimplementedExchangeServiceServer can be embedded to have forward
// compatible implementations.
type UnimplementedExchangeServiceServer struct{}

func (UnimplementedExchangeServiceServer) PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PlaceOrder not implemented")
}

func (UnimplementedExchangeServiceServer) CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CancelOrder not implemented")
}

func (UnimplementedExchangeServiceServer) GetOrderBook(context.Context, *GetOrderBookRequest) (*GetOrderBookResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetOrderBook not implemented")
}

func (UnimplementedExchangeServiceServer) GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetOrder not implemented")
}

func (UnimplementedExchangeServiceServer) Deposit(context.Context, *DepositRequest) (*DepositResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Deposit not implemented")
}

func (UnimplementedExchangeServiceServer) GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetBalance not implemented")
}

func (UnimplementedExchangeServiceServer) GetTrades(context.Context, *GetTradesRequest) (*GetTradesResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetTrades not implemented")
}

func (UnimplementedExchangeServiceServer) GetMarkets(context.Context, *GetMarketsRequest) (*GetMarketsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetMarkets not implemented")
}

func (UnimplementedExchangeServiceServer) GetSettlement(context.Context, *GetSettlementRequest) (*GetSettlementResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetSettlement not implemented")
}

// RegisterExchangeServiceServer registers the server implementation.
func RegisterExchangeServiceServer(s grpc.ServiceRegistrar, srv ExchangeServiceServer) {
	s.RegisterService(&ExchangeService_ServiceDesc, srv)
}

func _ExchangeService_PlaceOrder_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServiceServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeService_PlaceOrder_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServiceServer).PlaceOrder(ctx, req.(*PlaceOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ExchangeService_CancelOrder_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServiceServer).CancelOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeService_CancelOrder_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServiceServer).CancelOrder(ctx, req.(*CancelOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ExchangeService_GetOrderBook_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetOrderBookRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServiceServer).GetOrderBook(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeService_GetOrderBook_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServiceServer).GetOrderBook(ctx, req.(*GetOrderBookRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ExchangeService_GetOrder_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServiceServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeService_GetOrder_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServiceServer).GetOrder(ctx, req.(*GetOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ExchangeService_Deposit_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DepositRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServiceServer).Deposit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeService_Deposit_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServiceServer).Deposit(ctx, req.(*DepositRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ExchangeService_GetBalance_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetBalanceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServiceServer).GetBalance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeService_GetBalance_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServiceServer).GetBalance(ctx, req.(*GetBalanceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ExchangeService_GetTrades_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetTradesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServiceServer).GetTrades(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeService_GetTrades_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServiceServer).GetTrades(ctx, req.(*GetTradesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ExchangeService_GetMarkets_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetMarketsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServiceServer).GetMarkets(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeService_GetMarkets_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServiceServer).GetMarkets(ctx, req.(*GetMarketsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ExchangeService_GetSettlement_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSettlementRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExchangeServiceServer).GetSettlement(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExchangeService_GetSettlement_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExchangeServiceServer).GetSettlement(ctx, req.(*GetSettlementRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ExchangeService_ServiceDesc is the grpc.ServiceDesc for ExchangeService.
var ExchangeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "matchbook.ExchangeService",
	HandlerType: (*ExchangeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: _ExchangeService_PlaceOrder_Handler},
		{MethodName: "CancelOrder", Handler: _ExchangeService_CancelOrder_Handler},
		{MethodName: "GetOrderBook", Handler: _ExchangeService_GetOrderBook_Handler},
		{MethodName: "GetOrder", Handler: _ExchangeService_GetOrder_Handler},
		{MethodName: "Deposit", Handler: _ExchangeService_Deposit_Handler},
		{MethodName: "GetBalance", Handler: _ExchangeService_GetBalance_Handler},
		{MethodName: "GetTrades", Handler: _ExchangeService_GetTrades_Handler},
		{MethodName: "GetMarkets", Handler: _ExchangeService_GetMarkets_Handler},
		{MethodName: "GetSettlement", Handler: _ExchangeService_GetSettlement_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "exchange.proto",
}

// ExchangeServiceClient is the client API for ExchangeService service.
// Clients must select the JSON codec with grpc.CallContentSubtype.
type ExchangeServiceClient interface {
	PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error)
	CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error)
	GetOrderBook(ctx context.Context, in *GetOrderBookRequest, opts ...grpc.CallOption) (*GetOrderBookResponse, error)
	GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error)
	Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*DepositResponse, error)
	GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error)
	GetTrades(ctx context.Context, in *GetTradesRequest, opts ...grpc.CallOption) (*GetTradesResponse, error)
	GetMarkets(ctx context.Context, in *GetMarketsRequest, opts ...grpc.CallOption) (*GetMarketsResponse, error)
	GetSettlement(ctx context.Context, in *GetSettlementRequest, opts ...grpc.CallOption) (*GetSettlementResponse, error)
}

type exchangeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewExchangeServiceClient(cc grpc.ClientConnInterface) ExchangeServiceClient {
	return &exchangeServiceClient{cc}
}

func (c *exchangeServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	out := new(PlaceOrderResponse)
	if err := c.cc.Invoke(ctx, ExchangeService_PlaceOrder_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exchangeServiceClient) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error) {
	out := new(CancelOrderResponse)
	if err := c.cc.Invoke(ctx, ExchangeService_CancelOrder_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exchangeServiceClient) GetOrderBook(ctx context.Context, in *GetOrderBookRequest, opts ...grpc.CallOption) (*GetOrderBookResponse, error) {
	out := new(GetOrderBookResponse)
	if err := c.cc.Invoke(ctx, ExchangeService_GetOrderBook_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exchangeServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	out := new(GetOrderResponse)
	if err := c.cc.Invoke(ctx, ExchangeService_GetOrder_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exchangeServiceClient) Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*DepositResponse, error) {
	out := new(DepositResponse)
	if err := c.cc.Invoke(ctx, ExchangeService_Deposit_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exchangeServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	out := new(GetBalanceResponse)
	if err := c.cc.Invoke(ctx, ExchangeService_GetBalance_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exchangeServiceClient) GetTrades(ctx context.Context, in *GetTradesRequest, opts ...grpc.CallOption) (*GetTradesResponse, error) {
	out := new(GetTradesResponse)
	if err := c.cc.Invoke(ctx, ExchangeService_GetTrades_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exchangeServiceClient) GetMarkets(ctx context.Context, in *GetMarketsRequest, opts ...grpc.CallOption) (*GetMarketsResponse, error) {
	out := new(GetMarketsResponse)
	if err := c.cc.Invoke(ctx, ExchangeService_GetMarkets_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exchangeServiceClient) GetSettlement(ctx context.Context, in *GetSettlementRequest, opts ...grpc.CallOption) (*GetSettlementResponse, error) {
	out := new(GetSettlementResponse)
	if err := c.cc.Invoke(ctx, ExchangeService_GetSettlement_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
