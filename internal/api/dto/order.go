package dto

type PlaceOrderRequest struct {
	MarketType   string `json:"marketType" validate:"required,oneof=wholeblock inclusion-preconf"`
	InstrumentID string `json:"instrumentId" validate:"required,max=64"`
	Side         string `json:"side" validate:"required,oneof=buy sell"`
	OrderType    string `json:"orderType" validate:"omitempty,oneof=limit market"`
	Price        string `json:"price" validate:"required,decimal,nonnegative"`
	Quantity     string `json:"quantity" validate:"required,decimal,positive"`
	Passive      bool   `json:"passive"`
}

type CancelOrderRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
}
