package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"blockmarket/internal/metrics"
	"blockmarket/internal/order"
	"blockmarket/internal/user"
)

var (
	ErrNotFound             = order.ErrNotFound
	ErrNotAuthorized        = errors.New("order belongs to another user")
	ErrNotSynced            = errors.New("order not yet acknowledged by the exchange")
	ErrExchangeRejected     = errors.New("exchange rejected the request")
	ErrExchangeAuthRequired = errors.New("exchange authentication required")
	ErrInvalidOrder         = errors.New("invalid order")

	errMissingExchangeID = errors.New("exchange order id missing")
	errForeignOrder      = errors.New("exchange order is owned by another user")
	errIDConflict        = errors.New("exchange order already bound to another client order id")
	errFillOutOfRange    = errors.New("filled quantity out of range")
	errClientIDExhausted = errors.New("no free client order id")
)

// clientOrderIDAttempts сколько раз перегенерируем занятый clientOrderId
const clientOrderIDAttempts = 5

// DefaultMarketType если рынок не известен ни из записи, ни из списка
const DefaultMarketType = order.MarketInclusionPreconf

// Gateway биржа для движка. Токен пользователя передаётся в каждый вызов явно
type Gateway interface {
	PlaceOrder(ctx context.Context, token string, req order.PlaceRequest) (*order.ExchangeOrder, error)
	CancelOrder(ctx context.Context, token string, req order.CancelRequest) error
	ListOrders(ctx context.Context, token, accountID string, marketType order.MarketType) ([]order.ExchangeOrder, error)
	ListAccounts(ctx context.Context, token string) ([]order.Account, error)
}

// CredentialProvider токен биржи пользователя; если нет, ошибка с user.ErrNoExchangeToken
type CredentialProvider interface {
	ExchangeToken(ctx context.Context, userID int64) (string, error)
}

// PlaceInput параметры нового ордера
type PlaceInput struct {
	MarketType   order.MarketType
	InstrumentID string
	Side         order.Side
	OrderType    string
	Price        string
	Quantity     string
	Passive      bool
}

// SyncReport итоги одной синхронизации
type SyncReport struct {
	Skipped         bool
	Fetched         int
	Created         int
	Updated         int
	Unchanged       int
	Failed          int
	ListingFailures int
}

type Engine struct {
	repo     order.Repository
	gateway  Gateway
	creds    CredentialProvider
	accounts AccountResolver
	log      *zap.Logger

	newID            func() string
	newClientOrderID func() string
}

type Option func(*Engine)

// WithClientOrderIDs подменяет генератор clientOrderId (для тестов)
func WithClientOrderIDs(fn func() string) Option {
	return func(e *Engine) { e.newClientOrderID = fn }
}

// WithIDs подменяет генератор локальных id
func WithIDs(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(repo order.Repository, gateway Gateway, creds CredentialProvider, accounts AccountResolver, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:             repo,
		gateway:          gateway,
		creds:            creds,
		accounts:         accounts,
		log:              log.Named("orders"),
		newID:            func() string { return uuid.NewString() },
		newClientOrderID: newClientOrderID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newClientOrderID 8 случайных hex символов
func newClientOrderID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:4])
}

// allocateClientOrderID генерирует clientOrderId, пока не найдётся свободный
func (e *Engine) allocateClientOrderID(ctx context.Context) (string, error) {
	for range clientOrderIDAttempts {
		id := e.newClientOrderID()
		_, err := e.repo.GetByClientOrderID(ctx, id)
		if errors.Is(err, order.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("check client order id: %w", err)
		}
		e.log.Debug("client order id taken, drawing again", zap.String("client_order_id", id))
	}
	return "", errClientIDExhausted
}

func (e *Engine) credential(ctx context.Context, owner int64) (string, error) {
	token, err := e.creds.ExchangeToken(ctx, owner)
	if err != nil {
		if errors.Is(err, user.ErrNoExchangeToken) {
			return "", ErrExchangeAuthRequired
		}
		return "", fmt.Errorf("load exchange credential: %w", err)
	}
	if token == "" {
		return "", ErrExchangeAuthRequired
	}
	return token, nil
}

func (e *Engine) resolveAccount(ctx context.Context, token string) (order.Account, error) {
	accounts, err := e.gateway.ListAccounts(ctx, token)
	if err != nil {
		return order.Account{}, fmt.Errorf("%w: %w", ErrExchangeRejected, err)
	}
	return e.accounts.Resolve(accounts)
}

func (in PlaceInput) validate() error {
	if !in.MarketType.Valid() {
		return fmt.Errorf("%w: market type %q", ErrInvalidOrder, in.MarketType)
	}
	if in.Side != order.SideBuy && in.Side != order.SideSell {
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, in.Side)
	}
	if in.InstrumentID == "" {
		return fmt.Errorf("%w: instrument id required", ErrInvalidOrder)
	}
	price, err := decimal.NewFromString(in.Price)
	if err != nil || price.IsNegative() {
		return fmt.Errorf("%w: price %q", ErrInvalidOrder, in.Price)
	}
	qty, err := decimal.NewFromString(in.Quantity)
	if err != nil || !qty.IsPositive() {
		return fmt.Errorf("%w: quantity %q", ErrInvalidOrder, in.Quantity)
	}
	return nil
}

// PlaceOrder выставляет ордер на бирже и сохраняет локально как pending.
// Если биржа отказала, ничего не сохраняем.
func (e *Engine) PlaceOrder(ctx context.Context, owner int64, in PlaceInput) (*order.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	token, err := e.credential(ctx, owner)
	if err != nil {
		return nil, err
	}
	acc, err := e.resolveAccount(ctx, token)
	if err != nil {
		metrics.OrdersPlacedTotal.WithLabelValues(string(in.MarketType), "no_account").Inc()
		return nil, err
	}

	clientOrderID, err := e.allocateClientOrderID(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := e.gateway.PlaceOrder(ctx, token, order.PlaceRequest{
		MarketType:    in.MarketType,
		AccountID:     acc.ID,
		InstrumentID:  in.InstrumentID,
		Side:          in.Side,
		OrderType:     in.OrderType,
		Price:         in.Price,
		Quantity:      in.Quantity,
		ClientOrderID: clientOrderID,
		Passive:       in.Passive,
	})
	if err != nil {
		metrics.OrdersPlacedTotal.WithLabelValues(string(in.MarketType), "rejected").Inc()
		e.log.Warn("order rejected by exchange",
			zap.Int64("owner_id", owner),
			zap.String("client_order_id", clientOrderID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrExchangeRejected, err)
	}

	accountID := acc.ID
	o := &order.Order{
		ID:             e.newID(),
		ClientOrderID:  clientOrderID,
		AccountID:      &accountID,
		MarketType:     in.MarketType,
		Side:           in.Side,
		InstrumentID:   in.InstrumentID,
		Price:          in.Price,
		Quantity:       in.Quantity,
		FilledQuantity: "0",
		Status:         order.StatusPending,
		OwnerID:        owner,
	}
	if rec != nil && rec.ExchangeOrderID != "" {
		exchangeID := rec.ExchangeOrderID
		o.ExchangeOrderID = &exchangeID
	}

	err = e.repo.Create(ctx, o)
	if errors.Is(err, order.ErrDuplicate) {
		// Синхронизация успела создать строку раньше нас
		adopted, aerr := e.adoptPlaced(ctx, o)
		if aerr == nil {
			metrics.OrdersPlacedTotal.WithLabelValues(string(in.MarketType), "ok").Inc()
			e.log.Info("order placed, row already created by sync",
				zap.Int64("owner_id", owner),
				zap.String("order_id", adopted.ID),
				zap.String("client_order_id", clientOrderID),
				zap.Stringp("exchange_order_id", adopted.ExchangeOrderID))
			return adopted, nil
		}
		err = fmt.Errorf("%w; adopt: %w", err, aerr)
	}
	if err != nil {
		// Ордер на бирже есть, следующая синхронизация подхватит его по id
		e.log.Error("order placed but not stored",
			zap.Int64("owner_id", owner),
			zap.String("client_order_id", clientOrderID),
			zap.Stringp("exchange_order_id", o.ExchangeOrderID),
			zap.Error(err))
		metrics.OrdersPlacedTotal.WithLabelValues(string(in.MarketType), "store_failed").Inc()
		return nil, fmt.Errorf("store placed order: %w", err)
	}

	metrics.OrdersPlacedTotal.WithLabelValues(string(in.MarketType), "ok").Inc()
	e.log.Info("order placed",
		zap.Int64("owner_id", owner),
		zap.String("order_id", o.ID),
		zap.String("client_order_id", clientOrderID),
		zap.Stringp("exchange_order_id", o.ExchangeOrderID))
	return o, nil
}

// adoptPlaced дополняет строку, созданную синхронизацией, полями выставления,
// которых синхронизация знать не могла (счёт, clientOrderId, цена, объём)
func (e *Engine) adoptPlaced(ctx context.Context, placed *order.Order) (*order.Order, error) {
	var existing *order.Order
	var err error
	if placed.ExchangeOrderID != nil {
		existing, err = e.repo.GetByExchangeOrderID(ctx, *placed.ExchangeOrderID)
	} else {
		existing, err = e.repo.GetByClientOrderID(ctx, placed.ClientOrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	if existing.OwnerID != placed.OwnerID {
		return nil, errForeignOrder
	}
	if existing.ClientOrderID != "" && existing.ClientOrderID != placed.ClientOrderID {
		return nil, fmt.Errorf("%w: %s", errIDConflict, existing.ClientOrderID)
	}

	var u order.Update
	if existing.AccountID == nil {
		u.AccountID = placed.AccountID
	}
	if existing.ClientOrderID == "" {
		u.ClientOrderID = &placed.ClientOrderID
	}
	if existing.ExchangeOrderID == nil && placed.ExchangeOrderID != nil {
		u.ExchangeOrderID = placed.ExchangeOrderID
	}
	if existing.InstrumentID == "" {
		u.InstrumentID = &placed.InstrumentID
	}
	if !isPositive(existing.Quantity) {
		u.Quantity = &placed.Quantity
	}
	if decimalEqual(existing.Price, "0") && !decimalEqual(placed.Price, "0") {
		u.Price = &placed.Price
	}

	merged := *existing
	u.Apply(&merged)
	if err := checkFill(merged.FilledQuantity, merged.Quantity, true); err != nil {
		return nil, err
	}
	if err := e.repo.Update(ctx, existing.ID, u); err != nil {
		return nil, fmt.Errorf("update %s: %w", existing.ID, err)
	}
	return &merged, nil
}

// SyncOrders подтягивает ордера владельца с биржи и возвращает локальные, новые первыми.
// Ошибки биржи только ухудшают свежесть данных; возвращаемая ошибка всегда от БД.
func (e *Engine) SyncOrders(ctx context.Context, owner int64, marketType *order.MarketType) ([]*order.Order, error) {
	e.Sync(ctx, owner, marketType)
	orders, err := e.repo.ListByOwner(ctx, owner, marketType)
	if err != nil {
		return nil, fmt.Errorf("list local orders: %w", err)
	}
	return orders, nil
}

// Sync запрашивает ордера владельца по каждому рынку и мержит записи независимо
func (e *Engine) Sync(ctx context.Context, owner int64, marketType *order.MarketType) SyncReport {
	var report SyncReport
	log := e.log.With(zap.Int64("owner_id", owner))

	token, err := e.credential(ctx, owner)
	if err != nil {
		log.Debug("exchange sync skipped", zap.Error(err))
		report.Skipped = true
		return report
	}

	// accountId для списка необязателен, без него биржа вернёт все ордера пользователя
	var accountID string
	if acc, err := e.resolveAccount(ctx, token); err != nil {
		log.Warn("account resolution failed, listing without account", zap.Error(err))
	} else {
		accountID = acc.ID
	}

	markets := order.MarketTypes
	if marketType != nil {
		markets = []order.MarketType{*marketType}
	}

	for _, mt := range markets {
		records, err := e.gateway.ListOrders(ctx, token, accountID, mt)
		if err != nil {
			report.ListingFailures++
			metrics.SyncListingFailuresTotal.WithLabelValues(string(mt)).Inc()
			log.Warn("exchange order listing failed, keeping local state",
				zap.String("market_type", string(mt)), zap.Error(err))
			continue
		}

		for _, rec := range records {
			report.Fetched++
			outcome, err := e.merge(ctx, owner, mt, rec)
			if err != nil {
				report.Failed++
				metrics.SyncRecordsTotal.WithLabelValues("failed").Inc()
				log.Warn("exchange order not merged",
					zap.String("exchange_order_id", rec.ExchangeOrderID),
					zap.ByteString("raw", rec.Raw),
					zap.Error(err))
				continue
			}
			metrics.SyncRecordsTotal.WithLabelValues(outcome).Inc()
			switch outcome {
			case outcomeCreated:
				report.Created++
			case outcomeUpdated:
				report.Updated++
			default:
				report.Unchanged++
			}
		}
	}

	log.Info("exchange sync finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
		zap.Int("listing_failures", report.ListingFailures))
	return report
}

// CancelOrder отменяет на бирже, затем помечает локальный ордер cancelled
func (e *Engine) CancelOrder(ctx context.Context, owner int64, id string) (*order.Order, error) {
	o, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.OwnerID != owner {
		return nil, ErrNotAuthorized
	}
	if o.ExchangeOrderID == nil {
		return nil, ErrNotSynced
	}

	token, err := e.credential(ctx, owner)
	if err != nil {
		return nil, err
	}

	var accountID string
	if o.AccountID != nil {
		accountID = *o.AccountID
	} else {
		acc, err := e.resolveAccount(ctx, token)
		if err != nil {
			return nil, err
		}
		accountID = acc.ID
	}

	err = e.gateway.CancelOrder(ctx, token, order.CancelRequest{
		MarketType:      o.MarketType,
		AccountID:       accountID,
		InstrumentID:    o.InstrumentID,
		ClientOrderID:   o.ClientOrderID,
		ExchangeOrderID: *o.ExchangeOrderID,
	})
	if err != nil {
		metrics.OrdersCancelledTotal.WithLabelValues("rejected").Inc()
		e.log.Warn("cancel rejected by exchange",
			zap.Int64("owner_id", owner), zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrExchangeRejected, err)
	}

	// Подтверждение отмены важнее статуса от последней синхронизации
	cancelled := order.StatusCancelled
	u := order.Update{Status: &cancelled}
	if err := e.repo.Update(ctx, o.ID, u); err != nil {
		metrics.OrdersCancelledTotal.WithLabelValues("store_failed").Inc()
		return nil, fmt.Errorf("store cancellation: %w", err)
	}
	u.Apply(o)

	metrics.OrdersCancelledTotal.WithLabelValues("ok").Inc()
	e.log.Info("order cancelled", zap.Int64("owner_id", owner), zap.String("order_id", id))
	return o, nil
}
