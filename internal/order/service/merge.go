package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"blockmarket/internal/order"
)

const (
	outcomeCreated   = "created"
	outcomeUpdated   = "updated"
	outcomeUnchanged = "unchanged"
)

// merge upsert одной записи биржи. listing: рынок, из списка которого пришла
// запись, используется когда в самой записи рынка нет.
func (e *Engine) merge(ctx context.Context, owner int64, listing order.MarketType, rec order.ExchangeOrder) (string, error) {
	if rec.Err != nil {
		return "", rec.Err
	}
	if rec.ExchangeOrderID == "" {
		return "", errMissingExchangeID
	}

	existing, clientIDTaken, err := e.lookup(ctx, owner, rec)
	if err != nil {
		return "", err
	}

	if existing == nil {
		if clientIDTaken {
			e.log.Warn("client order id held by another order, mirroring without it",
				zap.Int64("owner_id", owner),
				zap.String("exchange_order_id", rec.ExchangeOrderID),
				zap.String("client_order_id", rec.ClientOrderID))
			rec.ClientOrderID = ""
		}
		return e.create(ctx, owner, listing, rec)
	}
	return e.update(ctx, owner, existing, rec)
}

// lookup ищет локальный ордер: сначала по id биржи, затем по clientOrderId
// (только ордер того же владельца, ещё без id биржи).
// clientIDTaken: clientOrderId занят другим ордером.
func (e *Engine) lookup(ctx context.Context, owner int64, rec order.ExchangeOrder) (o *order.Order, clientIDTaken bool, err error) {
	o, err = e.repo.GetByExchangeOrderID(ctx, rec.ExchangeOrderID)
	if err == nil {
		return o, false, nil
	}
	if !errors.Is(err, order.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup by exchange id: %w", err)
	}
	if rec.ClientOrderID == "" {
		return nil, false, nil
	}

	o, err = e.repo.GetByClientOrderID(ctx, rec.ClientOrderID)
	if errors.Is(err, order.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup by client order id: %w", err)
	}
	if o.OwnerID != owner || (o.ExchangeOrderID != nil && *o.ExchangeOrderID != rec.ExchangeOrderID) {
		return nil, true, nil
	}
	return o, false, nil
}

func (e *Engine) create(ctx context.Context, owner int64, listing order.MarketType, rec order.ExchangeOrder) (string, error) {
	o := newFromRecord(e.newID(), owner, listing, rec)
	if err := checkFill(o.FilledQuantity, o.Quantity, rec.Quantity != nil); err != nil {
		return "", err
	}

	err := e.repo.Create(ctx, o)
	if err == nil {
		return outcomeCreated, nil
	}
	if !errors.Is(err, order.ErrDuplicate) {
		return "", fmt.Errorf("create: %w", err)
	}

	// Параллельная синхронизация успела первой, обновляем её строку
	existing, lerr := e.repo.GetByExchangeOrderID(ctx, rec.ExchangeOrderID)
	if lerr != nil {
		return "", fmt.Errorf("create: %w; reload: %w", err, lerr)
	}
	return e.update(ctx, owner, existing, rec)
}

func (e *Engine) update(ctx context.Context, owner int64, existing *order.Order, rec order.ExchangeOrder) (string, error) {
	if existing.OwnerID != owner {
		return "", errForeignOrder
	}

	u, blocked := diff(existing, rec)
	if blocked {
		e.log.Warn("status transition refused, keeping local status",
			zap.String("order_id", existing.ID),
			zap.String("exchange_order_id", rec.ExchangeOrderID),
			zap.String("local", string(existing.Status)),
			zap.String("exchange", string(rec.Status)))
	}
	if u.Empty() {
		return outcomeUnchanged, nil
	}

	merged := *existing
	u.Apply(&merged)
	quantityKnown := rec.Quantity != nil || isPositive(existing.Quantity)
	if err := checkFill(merged.FilledQuantity, merged.Quantity, quantityKnown); err != nil {
		return "", err
	}

	if err := e.repo.Update(ctx, existing.ID, u); err != nil {
		return "", fmt.Errorf("update %s: %w", existing.ID, err)
	}
	return outcomeUpdated, nil
}

// newFromRecord локальный ордер из записи, впервые увиденной синхронизацией
func newFromRecord(id string, owner int64, listing order.MarketType, rec order.ExchangeOrder) *order.Order {
	exchangeID := rec.ExchangeOrderID
	o := &order.Order{
		ID:              id,
		ExchangeOrderID: &exchangeID,
		ClientOrderID:   rec.ClientOrderID,
		MarketType:      DefaultMarketType,
		Side:            order.SideBuy,
		Price:           "0",
		Quantity:        "0",
		FilledQuantity:  "0",
		Status:          rec.Status,
		OwnerID:         owner,
	}
	if listing.Valid() {
		o.MarketType = listing
	}
	if rec.MarketType != nil {
		o.MarketType = *rec.MarketType
	}
	if rec.Side != nil {
		o.Side = *rec.Side
	}
	if rec.InstrumentID != nil {
		o.InstrumentID = *rec.InstrumentID
	}
	if rec.Price != nil {
		o.Price = *rec.Price
	}
	if rec.Quantity != nil {
		o.Quantity = *rec.Quantity
	}
	if rec.FilledQuantity != nil {
		o.FilledQuantity = *rec.FilledQuantity
	}
	return o
}

// diff частичное обновление, приводящее o к rec. Отсутствующие поля не пишем,
// десятичные сравниваем по значению: повторная запись даёт пустой Update.
// blocked: переход статуса запрещён жизненным циклом.
func diff(o *order.Order, rec order.ExchangeOrder) (u order.Update, blocked bool) {
	if o.ExchangeOrderID == nil {
		id := rec.ExchangeOrderID
		u.ExchangeOrderID = &id
	}
	if rec.Status != o.Status {
		if order.CanTransition(o.Status, rec.Status) {
			status := rec.Status
			u.Status = &status
		} else {
			blocked = true
		}
	}
	if rec.FilledQuantity != nil && !decimalEqual(*rec.FilledQuantity, o.FilledQuantity) {
		u.FilledQuantity = rec.FilledQuantity
	}
	if rec.Side != nil && *rec.Side != o.Side {
		u.Side = rec.Side
	}
	if rec.Price != nil && !decimalEqual(*rec.Price, o.Price) {
		u.Price = rec.Price
	}
	if rec.Quantity != nil && !decimalEqual(*rec.Quantity, o.Quantity) {
		u.Quantity = rec.Quantity
	}
	if rec.InstrumentID != nil && *rec.InstrumentID != o.InstrumentID {
		u.InstrumentID = rec.InstrumentID
	}
	if rec.MarketType != nil && *rec.MarketType != o.MarketType {
		u.MarketType = rec.MarketType
	}
	return u, blocked
}

// checkFill: 0 <= filled <= quantity, верхняя граница только при известном quantity
func checkFill(filled, quantity string, quantityKnown bool) error {
	f, err := decimal.NewFromString(filled)
	if err != nil {
		return fmt.Errorf("%w: filled %q", errFillOutOfRange, filled)
	}
	if f.IsNegative() {
		return fmt.Errorf("%w: filled %s is negative", errFillOutOfRange, filled)
	}
	if !quantityKnown {
		return nil
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return nil
	}
	if f.GreaterThan(q) {
		return fmt.Errorf("%w: filled %s exceeds quantity %s", errFillOutOfRange, filled, quantity)
	}
	return nil
}

func decimalEqual(a, b string) bool {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return da.Equal(db)
}

func isPositive(s string) bool {
	d, err := decimal.NewFromString(s)
	return err == nil && d.IsPositive()
}
