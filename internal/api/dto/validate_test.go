package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceOrderRequestValidation(t *testing.T) {
	valid := PlaceOrderRequest{
		MarketType:   "wholeblock",
		InstrumentID: "ETH-WB-100",
		Side:         "buy",
		Price:        "0.0001",
		Quantity:     "1",
	}
	assert.NoError(t, Validate.Struct(valid))

	tests := []struct {
		name   string
		mutate func(*PlaceOrderRequest)
	}{
		{"unknown market", func(r *PlaceOrderRequest) { r.MarketType = "spot" }},
		{"unknown side", func(r *PlaceOrderRequest) { r.Side = "long" }},
		{"price not decimal", func(r *PlaceOrderRequest) { r.Price = "1,5" }},
		{"negative price", func(r *PlaceOrderRequest) { r.Price = "-1" }},
		{"zero quantity", func(r *PlaceOrderRequest) { r.Quantity = "0" }},
		{"missing instrument", func(r *PlaceOrderRequest) { r.InstrumentID = "" }},
		{"unknown order type", func(r *PlaceOrderRequest) { r.OrderType = "iceberg" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			assert.Error(t, Validate.Struct(req))
		})
	}
}

func TestVerifyRequestValidation(t *testing.T) {
	sig := "0x" + strings.Repeat("ab", 65)
	ok := VerifyRequest{
		Address:   "0x52908400098527886E0F7030069857D2E4169EE7",
		Signature: sig,
		NonceHash: "n1",
	}
	assert.NoError(t, Validate.Struct(ok))

	short := ok
	short.Signature = "0x" + strings.Repeat("ab", 64)
	assert.Error(t, Validate.Struct(short))

	badAddr := ok
	badAddr.Address = "0x1234"
	assert.Error(t, Validate.Struct(badAddr))
}

func TestCancelOrderRequestValidation(t *testing.T) {
	assert.NoError(t, Validate.Struct(CancelOrderRequest{OrderID: "5b0a3c2e-6f1d-4b8a-9c3e-2d1f0a9b8c7d"}))
	assert.Error(t, Validate.Struct(CancelOrderRequest{OrderID: "42"}))
}
