package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"blockmarket/internal/order"
)

var ErrMissingOrderID = errors.New("exchange order id missing")

// FlexString принимает строку, число или bool и хранит текст.
// null и отсутствующий ключ: Valid=false
type FlexString struct {
	Value string
	Valid bool
}

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = FlexString{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString{Value: s, Valid: true}
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexString{Value: strconv.FormatBool(v), Valid: true}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", b)
		}
		*f = FlexString{Value: n.String(), Valid: true}
	}
	return nil
}

// Present значение есть и не пустое
func (f FlexString) Present() bool {
	return f.Valid && f.Value != ""
}

func (f FlexString) Ptr() *string {
	if !f.Present() {
		return nil
	}
	v := f.Value
	return &v
}

// first первый заполненный кандидат
func first(candidates ...FlexString) FlexString {
	for _, c := range candidates {
		if c.Present() {
			return c
		}
	}
	return FlexString{}
}

// Scalar любой JSON скаляр; UseNumber, чтобы целые коды не стали float
type Scalar struct {
	Value any
	Set   bool
}

func (s *Scalar) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*s = Scalar{Value: v, Set: v != nil}
	return nil
}

// OrderPayload объединение всех форм ордера, которые отдают
// разные эндпоинты и версии API ETHGas
type OrderPayload struct {
	ExchangeOrderID FlexString `json:"exchangeOrderId"`
	OrderID         FlexString `json:"orderId"`
	ID              FlexString `json:"id"`
	ClientOrderID   FlexString `json:"clientOrderId"`

	MarketType   FlexString `json:"marketType"`
	Type         FlexString `json:"type"`
	InstrumentID FlexString `json:"instrumentId"`

	Side   Scalar `json:"side"`
	IsBuy  Scalar `json:"isBuy"`
	Status Scalar `json:"status"`

	Price          FlexString `json:"price"`
	Quantity       FlexString `json:"quantity"`
	Qty            FlexString `json:"qty"`
	FilledQuantity FlexString `json:"filledQuantity"`
	FilledQty      FlexString `json:"filledQty"`
	Fulfilled      FlexString `json:"fulfilled"`
}

// Warning дефолт, подставленный при нормализации
type Warning struct {
	Field string
	Raw   any
}

// DecodeOrder разбирает и нормализует один ордер биржи.
// Ошибки разбора попадают в Err записи, пачку целиком не роняем.
func DecodeOrder(raw json.RawMessage) (order.ExchangeOrder, []Warning) {
	rec := order.ExchangeOrder{Raw: raw, Status: order.StatusPending}

	var p OrderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		rec.Err = fmt.Errorf("decode order: %w", err)
		return rec, nil
	}
	return p.Normalize(raw)
}

// Normalize приводит payload к каноническому виду
func (p OrderPayload) Normalize(raw json.RawMessage) (order.ExchangeOrder, []Warning) {
	var warnings []Warning
	rec := order.ExchangeOrder{Raw: raw}

	rec.ExchangeOrderID = first(p.ExchangeOrderID, p.OrderID, p.ID).Value
	rec.ClientOrderID = p.ClientOrderID.Value

	status, ok := order.NormalizeStatus(p.Status.Value)
	if !ok {
		warnings = append(warnings, Warning{Field: "status", Raw: p.Status.Value})
	}
	rec.Status = status

	sideRaw := p.Side
	if !sideRaw.Set {
		sideRaw = p.IsBuy
	}
	if sideRaw.Set {
		if side, ok := order.NormalizeSide(sideRaw.Value); ok {
			rec.Side = &side
		} else {
			warnings = append(warnings, Warning{Field: "side", Raw: sideRaw.Value})
		}
	}

	rec.InstrumentID = p.InstrumentID.Ptr()
	rec.MarketType = p.marketType()

	var err error
	if rec.Price, err = decimalField("price", p.Price); err != nil {
		rec.Err = err
		return rec, warnings
	}
	if rec.Quantity, err = decimalField("quantity", first(p.Quantity, p.Qty)); err != nil {
		rec.Err = err
		return rec, warnings
	}
	if rec.FilledQuantity, err = decimalField("filledQuantity", first(p.FilledQuantity, p.FilledQty, p.Fulfilled)); err != nil {
		rec.Err = err
		return rec, warnings
	}

	if rec.ExchangeOrderID == "" {
		rec.Err = ErrMissingOrderID
	}
	return rec, warnings
}

// marketType: явное поле, иначе по имени инструмента
func (p OrderPayload) marketType() *order.MarketType {
	for _, f := range []FlexString{p.MarketType, p.Type} {
		if m, ok := order.ParseMarketType(f.Value); ok {
			return &m
		}
	}
	if m, ok := order.MarketTypeFromInstrument(p.InstrumentID.Value); ok {
		return &m
	}
	return nil
}

func decimalField(name string, f FlexString) (*string, error) {
	if !f.Present() {
		return nil, nil
	}
	if _, err := decimal.NewFromString(f.Value); err != nil {
		return nil, fmt.Errorf("%s %q is not a decimal: %w", name, f.Value, err)
	}
	return f.Ptr(), nil
}

// AccountPayload счёт в ответе биржи
type AccountPayload struct {
	AccountID FlexString `json:"accountId"`
	Type      FlexString `json:"type"`
	Name      string     `json:"name"`
}

func (a AccountPayload) Normalize() (order.Account, error) {
	if !a.AccountID.Present() {
		return order.Account{}, errors.New("account id missing")
	}
	acc := order.Account{ID: a.AccountID.Value, Name: a.Name}
	if a.Type.Present() {
		t, err := strconv.Atoi(a.Type.Value)
		if err != nil {
			return order.Account{}, fmt.Errorf("account %s: type %q: %w", a.AccountID.Value, a.Type.Value, err)
		}
		acc.Type = t
	}
	return acc, nil
}
