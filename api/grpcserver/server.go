// Package grpcserver exposes the exchange service over gRPC. All
// decimal/string conversion happens here; the service layer below
// works in integer ticks, lots, and ledger units only.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"matchbook/api/pb"
	"matchbook/domain/engine"
	"matchbook/domain/ledger"
	"matchbook/domain/market"
	"matchbook/domain/orderbook"
	"matchbook/infra/tradelog"
	"matchbook/service"
)

type Server struct {
	pb.UnimplementedExchangeServiceServer

	svc *service.Exchange
	log *zap.Logger
}

func NewServer(svc *service.Exchange, log *zap.Logger) *Server {
	return &Server{svc: svc, log: log.Named("grpc")}
}

// Run serves until the listener closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context, lis net.Listener) error {
	gs := grpc.NewServer()
	pb.RegisterExchangeServiceServer(gs, s)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	s.log.Info("listening", zap.String("addr", lis.Addr().String()))
	return gs.Serve(lis)
}

func (s *Server) PlaceOrder(ctx context.Context, req *pb.PlaceOrderRequest) (*pb.PlaceOrderResponse, error) {
	m, err := s.svc.Registry().Get(req.Market)
	if err != nil {
		return nil, toStatus(err)
	}

	po := engine.PlaceOrder{UserID: req.UserId}
	if po.Side, err = toSide(req.Side); err != nil {
		return nil, err
	}
	if po.Type, err = toType(req.Type); err != nil {
		return nil, err
	}

	qty, err := parseDecimal("quantity", req.Qty)
	if err != nil {
		return nil, err
	}
	if po.Qty, err = m.QtyToLots(qty); err != nil {
		return nil, toStatus(err)
	}

	if req.Price != "" {
		price, err := parseDecimal("price", req.Price)
		if err != nil {
			return nil, err
		}
		if po.Price, err = m.PriceToTicks(price); err != nil {
			return nil, toStatus(err)
		}
	}

	if req.MaxSpend != "" {
		spend, err := parseDecimal("max_spend", req.MaxSpend)
		if err != nil {
			return nil, err
		}
		quote, err := s.svc.Registry().Asset(m.QuoteAsset)
		if err != nil {
			return nil, toStatus(err)
		}
		if po.MaxSpend, err = market.ToUnits(spend, quote.Unit); err != nil {
			return nil, toStatus(err)
		}
	}

	res, err := s.svc.PlaceOrder(ctx, req.Market, po)
	if err != nil {
		return nil, toStatus(err)
	}

	s.log.Debug("order placed",
		zap.String("market", req.Market),
		zap.String("order_id", res.Order.ID.String()),
		zap.String("status", res.Order.Status.String()),
		zap.Int("trades", len(res.Trades)))

	resp := &pb.PlaceOrderResponse{Order: fromOrder(m, res.Order)}
	for _, t := range res.Trades {
		resp.Trades = append(resp.Trades, fromTrade(m, t))
	}
	return resp, nil
}

func (s *Server) CancelOrder(ctx context.Context, req *pb.CancelOrderRequest) (*pb.CancelOrderResponse, error) {
	id, err := uuid.Parse(req.OrderId)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid order_id: %v", err)
	}

	res, err := s.svc.CancelOrder(ctx, id, req.UserId)
	if err != nil {
		return nil, toStatus(err)
	}

	m, err := s.svc.Registry().Get(res.Order.Market)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.CancelOrderResponse{Order: fromOrder(m, res.Order)}, nil
}

func (s *Server) GetOrderBook(ctx context.Context, req *pb.GetOrderBookRequest) (*pb.GetOrderBookResponse, error) {
	m, err := s.svc.Registry().Get(req.Market)
	if err != nil {
		return nil, toStatus(err)
	}

	bids, asks, err := s.svc.OrderBook(ctx, req.Market, int(req.Depth))
	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.GetOrderBookResponse{
		Market: req.Market,
		Bids:   fromLevels(m, bids),
		Asks:   fromLevels(m, asks),
	}, nil
}

func (s *Server) GetOrder(ctx context.Context, req *pb.GetOrderRequest) (*pb.GetOrderResponse, error) {
	id, err := uuid.Parse(req.OrderId)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid order_id: %v", err)
	}

	o, err := s.svc.Order(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	m, err := s.svc.Registry().Get(o.Market)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetOrderResponse{Order: fromOrder(m, o)}, nil
}

func (s *Server) Deposit(ctx context.Context, req *pb.DepositRequest) (*pb.DepositResponse, error) {
	asset, err := s.svc.Registry().Asset(req.Asset)
	if err != nil {
		return nil, toStatus(err)
	}

	amt, err := parseDecimal("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	units, err := market.ToUnits(amt, asset.Unit)
	if err != nil {
		return nil, toStatus(err)
	}

	bal, err := s.svc.Deposit(req.UserId, req.Asset, units)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.DepositResponse{Balance: fromBalance(asset, bal)}, nil
}

func (s *Server) GetBalance(ctx context.Context, req *pb.GetBalanceRequest) (*pb.GetBalanceResponse, error) {
	asset, err := s.svc.Registry().Asset(req.Asset)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetBalanceResponse{
		Balance: fromBalance(asset, s.svc.Balance(req.UserId, req.Asset)),
	}, nil
}

func (s *Server) GetTrades(ctx context.Context, req *pb.GetTradesRequest) (*pb.GetTradesResponse, error) {
	m, err := s.svc.Registry().Get(req.Market)
	if err != nil {
		return nil, toStatus(err)
	}

	trades, err := s.svc.RecentTrades(ctx, req.Market, int(req.Limit))
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &pb.GetTradesResponse{}
	for i := range trades {
		resp.Trades = append(resp.Trades, fromTrade(m, &trades[i]))
	}
	return resp, nil
}

func (s *Server) GetMarkets(ctx context.Context, req *pb.GetMarketsRequest) (*pb.GetMarketsResponse, error) {
	resp := &pb.GetMarketsResponse{}
	for _, m := range s.svc.Registry().List() {
		resp.Markets = append(resp.Markets, &pb.Market{
			Symbol:      m.Symbol,
			BaseAsset:   m.BaseAsset,
			QuoteAsset:  m.QuoteAsset,
			TickSize:    m.TickSize.String(),
			LotSize:     m.LotSize.String(),
			MakerFeeBps: m.MakerFeeBps,
			TakerFeeBps: m.TakerFeeBps,
		})
	}
	return resp, nil
}

func (s *Server) GetSettlement(ctx context.Context, req *pb.GetSettlementRequest) (*pb.GetSettlementResponse, error) {
	id, err := uuid.Parse(req.SettlementId)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid settlement_id: %v", err)
	}

	rec, err := s.svc.Settlement(id)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &pb.GetSettlementResponse{
		Id:      rec.ID.String(),
		TradeId: rec.TradeID.String(),
		Market:  rec.Market,
		Seq:     rec.SeqID,
		Time:    rec.Time.UTC().Format(time.RFC3339Nano),
	}
	for _, leg := range rec.Legs {
		asset, err := s.svc.Registry().Asset(leg.Asset)
		if err != nil {
			return nil, toStatus(err)
		}
		resp.Legs = append(resp.Legs, &pb.SettlementLeg{
			Asset:    leg.Asset,
			FromUser: leg.FromUser,
			ToUser:   leg.ToUser,
			Amount:   market.FromUnits(leg.Amount, asset.Unit).String(),
		})
	}
	return resp, nil
}

// --- converters ---

func toSide(s string) (orderbook.Side, error) {
	switch s {
	case "buy", "bid":
		return orderbook.Bid, nil
	case "sell", "ask":
		return orderbook.Ask, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "unknown side %q", s)
	}
}

func toType(t string) (orderbook.OrderType, error) {
	switch t {
	case "", "limit":
		return orderbook.Limit, nil
	case "market":
		return orderbook.Market, nil
	case "ioc":
		return orderbook.IOC, nil
	case "fok":
		return orderbook.FOK, nil
	case "post_only":
		return orderbook.PostOnly, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "unknown order type %q", t)
	}
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, status.Errorf(codes.InvalidArgument, "invalid %s %q", field, s)
	}
	return d, nil
}

func fromOrder(m *market.Market, o *orderbook.Order) *pb.Order {
	out := &pb.Order{
		Id:        o.ID.String(),
		UserId:    o.UserID,
		Market:    o.Market,
		Side:      o.Side.String(),
		Type:      o.Type.String(),
		Qty:       m.LotsToQty(o.Qty).String(),
		Filled:    m.LotsToQty(o.Filled).String(),
		Status:    o.Status.String(),
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if o.Price > 0 {
		out.Price = m.TicksToPrice(o.Price).String()
	}
	return out
}

func fromTrade(m *market.Market, t *engine.Trade) *pb.Trade {
	return &pb.Trade{
		Id:           t.ID.String(),
		Market:       t.Market,
		MakerOrderId: t.MakerOrderID.String(),
		TakerOrderId: t.TakerOrderID.String(),
		Price:        m.TicksToPrice(t.Price).String(),
		Qty:          m.LotsToQty(t.Qty).String(),
		Side:         t.Side.String(),
		Seq:          t.SeqID,
		Time:         t.Time.UTC().Format(time.RFC3339Nano),
	}
}

func fromLevels(m *market.Market, lvls []orderbook.Level) []*pb.Level {
	out := make([]*pb.Level, 0, len(lvls))
	for _, l := range lvls {
		out = append(out, &pb.Level{
			Price:      m.TicksToPrice(l.Price).String(),
			Qty:        m.LotsToQty(l.Qty).String(),
			OrderCount: int32(l.Count),
		})
	}
	return out
}

func fromBalance(a *market.Asset, b ledger.Balance) *pb.Balance {
	return &pb.Balance{
		Asset:     a.Symbol,
		Available: market.FromUnits(b.Available, a.Unit).String(),
		Locked:    market.FromUnits(b.Locked, a.Unit).String(),
	}
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, orderbook.ErrInvalidOrder), errors.Is(err, market.ErrMisaligned):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, orderbook.ErrOrderNotFound),
		errors.Is(err, tradelog.ErrNotFound),
		errors.Is(err, market.ErrUnknownMarket),
		errors.Is(err, market.ErrUnknownAsset):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrNotOwner):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
