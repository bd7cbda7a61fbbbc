package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"blockmarket/internal/ethgas/entity"
	"blockmarket/internal/order"
)

// placeOrderBody тело запроса на выставление; сторона передаётся как isBuy (bool)
type placeOrderBody struct {
	AccountID     string `json:"accountId"`
	InstrumentID  string `json:"instrumentId"`
	Side          bool   `json:"side"`
	OrderType     string `json:"orderType"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	ClientOrderID string `json:"clientOrderId"`
	Passive       bool   `json:"passive"`
}

type cancelOrderBody struct {
	AccountID     string `json:"accountId,omitempty"`
	InstrumentID  string `json:"instrumentId,omitempty"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
	OrderID       string `json:"orderId"`
}

// PlaceOrder выставляет ордер. ExchangeOrderID пустой, если биржа не вернула id
func (c *Client) PlaceOrder(ctx context.Context, token string, req order.PlaceRequest) (*order.ExchangeOrder, error) {
	orderType := req.OrderType
	if orderType == "" {
		orderType = "limit"
	}
	body := placeOrderBody{
		AccountID:     req.AccountID,
		InstrumentID:  req.InstrumentID,
		Side:          req.Side == order.SideBuy,
		OrderType:     orderType,
		Price:         req.Price,
		Quantity:      req.Quantity,
		ClientOrderID: req.ClientOrderID,
		Passive:       req.Passive,
	}

	path := fmt.Sprintf("%s/%s/order", APIVersion, req.MarketType)
	payload, err := c.request(ctx, "place_order", http.MethodPost, path, nil, token, body)
	if err != nil {
		return nil, fmt.Errorf("place %s order failed: %w", req.MarketType, err)
	}

	raw := singleObject(payload, "order")
	rec, _ := entity.DecodeOrder(raw)
	if rec.Err != nil {
		// Принят, но ответ не разобрали: следующая синхронизация найдёт его по clientOrderId
		c.log.Warn("place order response without usable order",
			zap.String("client_order_id", req.ClientOrderID),
			zap.ByteString("payload", payload),
			zap.Error(rec.Err))
		return &order.ExchangeOrder{Raw: payload, Status: order.StatusPending}, nil
	}
	return &rec, nil
}

// CancelOrder отменяет ордер по id биржи
func (c *Client) CancelOrder(ctx context.Context, token string, req order.CancelRequest) error {
	body := cancelOrderBody{
		AccountID:     req.AccountID,
		InstrumentID:  req.InstrumentID,
		ClientOrderID: req.ClientOrderID,
		OrderID:       req.ExchangeOrderID,
	}
	path := fmt.Sprintf("%s/%s/order/cancel", APIVersion, req.MarketType)
	if _, err := c.request(ctx, "cancel_order", http.MethodPost, path, nil, token, body); err != nil {
		return fmt.Errorf("cancel %s order failed: %w", req.MarketType, err)
	}
	return nil
}

// ListOrders ордера пользователя на одном рынке.
// Нераспарсенная запись приходит с заполненным Err, остальные не страдают
func (c *Client) ListOrders(ctx context.Context, token, accountID string, marketType order.MarketType) ([]order.ExchangeOrder, error) {
	var query url.Values
	if accountID != "" {
		query = url.Values{"accountId": {accountID}}
	}
	path := fmt.Sprintf("%s/user/%s/orders", APIVersion, marketType)
	payload, err := c.request(ctx, "list_orders", http.MethodGet, path, query, token, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s orders failed: %w", marketType, err)
	}

	items, err := unwrapList(payload, "orders")
	if err != nil {
		return nil, fmt.Errorf("list %s orders: %w", marketType, err)
	}

	records := make([]order.ExchangeOrder, 0, len(items))
	for _, item := range items {
		rec, warnings := entity.DecodeOrder(item)
		for _, w := range warnings {
			c.log.Warn("exchange order field defaulted",
				zap.String("exchange_order_id", rec.ExchangeOrderID),
				zap.String("field", w.Field),
				zap.Any("raw", w.Raw))
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListAccounts счета пользователя на бирже
func (c *Client) ListAccounts(ctx context.Context, token string) ([]order.Account, error) {
	payload, err := c.request(ctx, "list_accounts", http.MethodGet, APIVersion+"/user/accounts", nil, token, nil)
	if err != nil {
		return nil, fmt.Errorf("list accounts failed: %w", err)
	}

	items, err := unwrapList(payload, "accounts")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts := make([]order.Account, 0, len(items))
	for _, item := range items {
		var p entity.AccountPayload
		if err := json.Unmarshal(item, &p); err != nil {
			c.log.Warn("skipping undecodable account", zap.ByteString("raw", item), zap.Error(err))
			continue
		}
		acc, err := p.Normalize()
		if err != nil {
			c.log.Warn("skipping malformed account", zap.ByteString("raw", item), zap.Error(err))
			continue
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// singleObject разворачивает {"<key>": {...}}, если есть
func singleObject(payload json.RawMessage, key string) json.RawMessage {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return payload
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return payload
	}
	if inner, ok := obj[key]; ok && len(bytes.TrimSpace(inner)) > 0 && bytes.TrimSpace(inner)[0] == '{' {
		return inner
	}
	return payload
}
