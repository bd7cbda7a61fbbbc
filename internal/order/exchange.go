package order

import "encoding/json"

// ExchangeOrder запись биржи после нормализации на границе gateway.
// Поля-указатели nil, если биржа их не прислала.
type ExchangeOrder struct {
	ExchangeOrderID string
	ClientOrderID   string
	// nil, если рынок не определить ни по полю, ни по инструменту
	MarketType     *MarketType
	Side           *Side
	Status         Status
	InstrumentID   *string
	Price          *string
	Quantity       *string
	FilledQuantity *string

	// исходный payload, для диагностики
	Raw json.RawMessage
	// Err: запись не разобрана, остальным полям не доверяем
	Err error
}

// Account счёт пользователя на бирже
type Account struct {
	ID   string `json:"accountId"`
	Type int    `json:"type"`
	Name string `json:"name,omitempty"`
}

type PlaceRequest struct {
	MarketType    MarketType
	AccountID     string
	InstrumentID  string
	Side          Side
	OrderType     string
	Price         string
	Quantity      string
	ClientOrderID string
	Passive       bool
}

type CancelRequest struct {
	MarketType      MarketType
	AccountID       string
	InstrumentID    string
	ClientOrderID   string
	ExchangeOrderID string
}
