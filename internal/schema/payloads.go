package schema

// Price is a scaled integer. The scale is defined by configuration.
type Price int64

// Quantity is a scaled integer. The scale is defined by configuration.
type Quantity int64

// Notional is a scaled integer. The scale is defined by configuration.
type Notional int64

// Fee is a scaled integer. The scale is defined by configuration.
type Fee int64

// Bar is the payload for EventBar: one fixed-interval OHLCV snapshot.
// Bars are immutable once constructed; per instrument the timestamp is
// strictly increasing.
type Bar struct {
	InstrumentID uint32
	Flags        uint16
	Reserved     uint16
	TsNano       int64
	Open         Price
	High         Price
	Low          Price
	Close        Price
	Volume       Quantity
}

// SignalKind describes the trading intent of a signal.
type SignalKind uint16

const (
	SignalUnknown SignalKind = iota
	SignalEnterLong
	SignalEnterShort
	SignalExit
	SignalAdjust
)

// ConfidenceScale is the denominator for Signal.Confidence.
// Confidence 10000 means 1.0.
const ConfidenceScale = 10000

// Signal is the payload for EventSignal: a strategy's trading intent,
// not yet validated or executed.
type Signal struct {
	SignalID     uint64
	StrategyID   uint32
	InstrumentID uint32
	Kind         SignalKind
	Confidence   uint16
	Flags        uint16
	Reserved     uint16
	TsNano       int64
}

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

// OrderIntent is the payload for EventOrderIntent. Every intent references
// exactly one signal.
type OrderIntent struct {
	OrderID      uint64
	SignalID     uint64
	InstrumentID uint32
	Side         OrderSide
	Type         OrderType
	Flags        uint16
	Reserved     uint16
	Reserved2    uint32
	Price        Price
	Qty          Quantity
}

// OrderAckStatus describes the outcome of an order acknowledgment.
type OrderAckStatus uint16

const (
	OrderAckStatusUnknown OrderAckStatus = iota
	OrderAckStatusAcked
	OrderAckStatusRejected
	OrderAckStatusCancelled
	OrderAckStatusFilled
)

// OrderAck is the payload for EventOrderAck.
type OrderAck struct {
	OrderID      uint64
	InstrumentID uint32
	Status       OrderAckStatus
	Reason       RejectReason
	Price        Price
	Qty          Quantity
	LeavesQty    Quantity
}

// Trade is the payload for EventTrade: the permanent audit record of a
// realized execution. Every trade references exactly one order.
type Trade struct {
	TradeID      uint64
	OrderID      uint64
	InstrumentID uint32
	Side         OrderSide
	Flags        uint16
	Price        Price
	Qty          Quantity
	Fee          Fee
	TsNano       int64
}

// RejectReason is a coarse reason code for rejected intents and faults.
type RejectReason uint16

const (
	RejectReasonNone RejectReason = iota
	RejectReasonManualHalt
	RejectReasonDrawdown
	RejectReasonDailyLimit
	RejectReasonPositionLimit
	RejectReasonAggregateLimit
	RejectReasonMaxQty
	RejectReasonMaxNotional
	RejectReasonBroker
	RejectReasonSuperseded
	RejectReasonStrategyFault
)

// Reject is the payload for EventReject. It carries enough context to
// reconstruct why a trade did not happen.
type Reject struct {
	SignalID     uint64
	OrderID      uint64
	InstrumentID uint32
	Reason       RejectReason
	Flags        uint16
	TsNano       int64
}

// HaltReason describes why the process stopped trading.
type HaltReason uint16

const (
	HaltReasonUnknown HaltReason = iota
	HaltReasonManual
	HaltReasonDrawdown
	HaltReasonBrokerDesync
)

// Halt is the payload for EventHalt: a kill-switch trip. A halted process
// never auto-resumes; clearing it requires operator action.
type Halt struct {
	Reason     HaltReason
	Flags      uint16
	DailyCount uint32
	Drawdown   Notional
	TsNano     int64
}
