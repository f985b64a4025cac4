package exec

import (
	"context"
	"strconv"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/ws"

	"main/internal/obs"
	"main/internal/schema"
)

var ErrBrokerDesync = errors.New("broker state desync")

// LiveBrokerConfig configures the venue order connection.
type LiveBrokerConfig struct {
	URL         string
	VenueSymbol func(instrumentID uint32) string
	// InstrumentBySymbol maps a venue symbol back to the local instrument,
	// used when listing venue positions for reconciliation.
	InstrumentBySymbol func(symbol string) (uint32, bool)
	PriceScale         int32
	QtyScale           int32
}

// LiveBroker routes orders to a venue over a websocket session. Each order
// is sent and awaited synchronously; the caller bounds the wait with its
// context.
type LiveBroker struct {
	cfg LiveBrokerConfig
	wss *ws.WebSocket
	// req numbers cancel/list requests; the high bit keeps them out of
	// the order-ID space so response matching can't cross wires.
	req *obs.TraceGenerator
}

// NewLiveBroker creates the broker. Start must be called before Execute.
func NewLiveBroker(ctx context.Context, cfg LiveBrokerConfig) *LiveBroker {
	return &LiveBroker{
		cfg: cfg,
		wss: ws.New(ctx, cfg.URL),
		req: obs.NewTraceGenerator(1),
	}
}

// Start opens the websocket session.
func (b *LiveBroker) Start(ctx context.Context) error {
	if err := b.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start order wss")
	}
	return nil
}

// Close tears down the session.
func (b *LiveBroker) Close() {
	b.wss.Close()
}

func (b *LiveBroker) Name() string { return "live" }

type liveOrderRequest struct {
	Method string `json:"method"`
	ID     uint64 `json:"id"`
	Params struct {
		Symbol string `json:"symbol"`
		Side   string `json:"side"`
		Type   string `json:"type"`
		Price  string `json:"price,omitempty"`
		Qty    string `json:"quantity"`
	} `json:"params"`
}

type liveOrderResponse struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Result struct {
		TradeID   uint64 `json:"tradeId"`
		FillPrice string `json:"fillPrice"`
		FillQty   string `json:"fillQty"`
		Fee       string `json:"fee"`
		TsNano    int64  `json:"ts"`
	} `json:"result"`
}

// Execute submits the order and waits for the venue's terminal response.
func (b *LiveBroker) Execute(ctx context.Context, intent schema.OrderIntent) (schema.Trade, bool, error) {
	var (
		resp  liveOrderResponse
		found bool
	)
	err := b.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, conn *ws.WebSocket) error {
			payload := b.buildRequest(intent)
			if err := conn.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write order payload").With("orderID", intent.OrderID)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var r liveOrderResponse
			if err := m.Unmarshal(&r); err != nil || r.ID != intent.OrderID {
				return false, nil
			}
			resp, found = r, true
			return true, nil
		},
	}, false)
	if err != nil {
		return schema.Trade{}, false, errors.Wrap(err, "send and wait")
	}
	if !found {
		return schema.Trade{}, false, ErrBrokerDesync
	}

	switch resp.Status {
	case "REJECTED":
		logs.Warnf("venue rejected order %d, reason: %s", intent.OrderID, resp.Error)
		return schema.Trade{}, false, errors.Wrap(ErrBrokerRejected, resp.Error)
	case "ACKED":
		return schema.Trade{}, false, nil
	case "FILLED":
		return b.buildTrade(intent, resp)
	default:
		return schema.Trade{}, false, errors.Wrapf(ErrBrokerDesync, "unknown status %q", resp.Status)
	}
}

type liveCancelRequest struct {
	Method string `json:"method"`
	ID     uint64 `json:"id"`
	Params struct {
		OrderID uint64 `json:"orderId"`
	} `json:"params"`
}

type livePositionsRequest struct {
	Method string `json:"method"`
	ID     uint64 `json:"id"`
}

type livePositionsResponse struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Result []struct {
		Symbol   string `json:"symbol"`
		Qty      string `json:"qty"`
		AvgPrice string `json:"avgPrice"`
	} `json:"result"`
}

func (b *LiveBroker) nextReqID() uint64 {
	return b.req.Next() | 1<<63
}

// Cancel asks the venue to pull a resting order.
func (b *LiveBroker) Cancel(ctx context.Context, orderID uint64) error {
	var (
		req  liveCancelRequest
		resp liveOrderResponse
	)
	req.Method = "order.cancel"
	req.ID = b.nextReqID()
	req.Params.OrderID = orderID

	err := b.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, conn *ws.WebSocket) error {
			return conn.WriteJSON(req)
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var r liveOrderResponse
			if err := m.Unmarshal(&r); err != nil || r.ID != req.ID {
				return false, nil
			}
			resp = r
			return true, nil
		},
	}, false)
	if err != nil {
		return errors.Wrap(err, "cancel order").With("orderID", orderID)
	}
	if resp.Status == "REJECTED" {
		return errors.Wrap(ErrBrokerRejected, resp.Error)
	}
	return nil
}

// Positions lists the venue's open positions for startup reconciliation.
func (b *LiveBroker) Positions(ctx context.Context) ([]BrokerPosition, error) {
	var (
		req  livePositionsRequest
		resp livePositionsResponse
	)
	req.Method = "position.list"
	req.ID = b.nextReqID()

	err := b.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, conn *ws.WebSocket) error {
			return conn.WriteJSON(req)
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var r livePositionsResponse
			if err := m.Unmarshal(&r); err != nil || r.ID != req.ID {
				return false, nil
			}
			resp = r
			return true, nil
		},
	}, false)
	if err != nil {
		return nil, errors.Wrap(err, "list positions")
	}
	if resp.Status == "REJECTED" {
		return nil, errors.Wrap(ErrBrokerRejected, resp.Error)
	}

	out := make([]BrokerPosition, 0, len(resp.Result))
	for _, row := range resp.Result {
		if b.cfg.InstrumentBySymbol == nil {
			return nil, errors.Wrap(ErrBrokerDesync, "no symbol mapping configured")
		}
		id, ok := b.cfg.InstrumentBySymbol(row.Symbol)
		if !ok {
			logs.Warnf("venue reports unknown symbol %s, skipping", row.Symbol)
			continue
		}
		qty, err := parseScaled(row.Qty, b.cfg.QtyScale)
		if err != nil {
			return nil, errors.Wrap(err, "position qty")
		}
		avg, err := parseScaled(row.AvgPrice, b.cfg.PriceScale)
		if err != nil {
			return nil, errors.Wrap(err, "position avg price")
		}
		out = append(out, BrokerPosition{
			InstrumentID: id,
			Qty:          schema.Quantity(qty),
			AvgEntry:     schema.Price(avg),
		})
	}
	return out, nil
}

func (b *LiveBroker) buildRequest(intent schema.OrderIntent) liveOrderRequest {
	var req liveOrderRequest
	req.Method = "order.place"
	req.ID = intent.OrderID
	req.Params.Symbol = b.cfg.VenueSymbol(intent.InstrumentID)
	if intent.Side == schema.OrderSideBuy {
		req.Params.Side = "BUY"
	} else {
		req.Params.Side = "SELL"
	}
	if intent.Type == schema.OrderTypeMarket {
		req.Params.Type = "MARKET"
	} else {
		req.Params.Type = "LIMIT"
		req.Params.Price = formatScaled(int64(intent.Price), b.cfg.PriceScale)
	}
	req.Params.Qty = formatScaled(int64(intent.Qty), b.cfg.QtyScale)
	return req
}

func (b *LiveBroker) buildTrade(intent schema.OrderIntent, resp liveOrderResponse) (schema.Trade, bool, error) {
	price, err := parseScaled(resp.Result.FillPrice, b.cfg.PriceScale)
	if err != nil {
		return schema.Trade{}, false, errors.Wrap(err, "fill price")
	}
	qty, err := parseScaled(resp.Result.FillQty, b.cfg.QtyScale)
	if err != nil {
		return schema.Trade{}, false, errors.Wrap(err, "fill qty")
	}
	fee, err := parseScaled(resp.Result.Fee, b.cfg.PriceScale+b.cfg.QtyScale)
	if err != nil {
		return schema.Trade{}, false, errors.Wrap(err, "fee")
	}
	return schema.Trade{
		TradeID:      resp.Result.TradeID,
		OrderID:      intent.OrderID,
		InstrumentID: intent.InstrumentID,
		Side:         intent.Side,
		Price:        schema.Price(price),
		Qty:          schema.Quantity(qty),
		Fee:          schema.Fee(fee),
		TsNano:       resp.Result.TsNano,
	}, true, nil
}

func formatScaled(value int64, scale int32) string {
	neg := value < 0
	if neg {
		value = -value
	}
	s := strconv.FormatInt(value, 10)
	if scale > 0 {
		for int32(len(s)) <= scale {
			s = "0" + s
		}
		cut := len(s) - int(scale)
		s = s[:cut] + "." + s[cut:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

func parseScaled(s string, scale int32) (int64, error) {
	if s == "" {
		return 0, nil
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			intPart, fracPart = s[:i], s[i+1:]
			break
		}
	}
	if int32(len(fracPart)) > scale {
		fracPart = fracPart[:scale]
	}
	for int32(len(fracPart)) < scale {
		fracPart += "0"
	}
	var value int64
	for _, c := range intPart + fracPart {
		if c < '0' || c > '9' {
			return 0, errors.Errorf("invalid scaled value %q", s)
		}
		value = value*10 + int64(c-'0')
	}
	if neg {
		value = -value
	}
	return value, nil
}
