package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("order not found")
	ErrDuplicate = errors.New("order already exists")
)

type MarketType string

const (
	MarketWholeblock       MarketType = "wholeblock"
	MarketInclusionPreconf MarketType = "inclusion-preconf"
)

// MarketTypes все рынки, в порядке опроса биржи
var MarketTypes = []MarketType{MarketWholeblock, MarketInclusionPreconf}

func (m MarketType) Valid() bool {
	return m == MarketWholeblock || m == MarketInclusionPreconf
}

// ParseMarketType принимает канонические имена и короткое "preconf" из роутов
func ParseMarketType(s string) (MarketType, bool) {
	switch s {
	case string(MarketWholeblock):
		return MarketWholeblock, true
	case string(MarketInclusionPreconf), "preconf":
		return MarketInclusionPreconf, true
	}
	return "", false
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// IsTerminal финальный статус, дальше переходов нет
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusExpired
}

// CanTransition жизненный цикл ордера:
//
//	pending -> active -> {filled, cancelled, expired}
//	pending -> {filled, cancelled, expired}
//	active  -> active
//
// Финальные статусы переходят только сами в себя.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusActive || to.IsTerminal()
	case StatusActive:
		return to.IsTerminal()
	}
	return false
}

// Order локальное зеркало ордера на бирже
type Order struct {
	ID              string     `json:"id"`
	ExchangeOrderID *string    `json:"exchangeOrderId"`
	ClientOrderID   string     `json:"clientOrderId"`
	AccountID       *string    `json:"accountId,omitempty"`
	MarketType      MarketType `json:"marketType"`
	Side            Side       `json:"side"`
	InstrumentID    string     `json:"instrumentId"`
	Price           string     `json:"price"`
	Quantity        string     `json:"quantity"`
	FilledQuantity  string     `json:"filledQuantity"`
	Status          Status     `json:"status"`
	OwnerID         int64      `json:"ownerId"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Update частичное обновление, nil поля не трогаем
type Update struct {
	ExchangeOrderID *string
	Status          *Status
	FilledQuantity  *string
	Side            *Side
	Price           *string
	InstrumentID    *string
	MarketType      *MarketType
	Quantity        *string
	AccountID       *string
	ClientOrderID   *string
}

func (u Update) Empty() bool {
	return u.ExchangeOrderID == nil &&
		u.Status == nil &&
		u.FilledQuantity == nil &&
		u.Side == nil &&
		u.Price == nil &&
		u.InstrumentID == nil &&
		u.MarketType == nil &&
		u.Quantity == nil &&
		u.AccountID == nil &&
		u.ClientOrderID == nil
}

// Apply переносит заданные поля u в o
func (u Update) Apply(o *Order) {
	if u.ExchangeOrderID != nil {
		id := *u.ExchangeOrderID
		o.ExchangeOrderID = &id
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.FilledQuantity != nil {
		o.FilledQuantity = *u.FilledQuantity
	}
	if u.Side != nil {
		o.Side = *u.Side
	}
	if u.Price != nil {
		o.Price = *u.Price
	}
	if u.InstrumentID != nil {
		o.InstrumentID = *u.InstrumentID
	}
	if u.MarketType != nil {
		o.MarketType = *u.MarketType
	}
	if u.Quantity != nil {
		o.Quantity = *u.Quantity
	}
	if u.AccountID != nil {
		id := *u.AccountID
		o.AccountID = &id
	}
	if u.ClientOrderID != nil {
		o.ClientOrderID = *u.ClientOrderID
	}
}
