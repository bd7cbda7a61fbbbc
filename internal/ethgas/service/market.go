package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"blockmarket/internal/order"
)

// Markets публичный список рынков
func (c *Client) Markets(ctx context.Context, marketType order.MarketType) (json.RawMessage, error) {
	path := fmt.Sprintf("%s/p/%s/markets", APIVersion, marketType)
	payload, err := c.request(ctx, "markets", http.MethodGet, path, nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("get %s markets failed: %w", marketType, err)
	}
	return payload, nil
}

// Trades последние публичные сделки
func (c *Client) Trades(ctx context.Context, marketType order.MarketType) (json.RawMessage, error) {
	path := fmt.Sprintf("%s/p/%s/trades", APIVersion, marketType)
	payload, err := c.request(ctx, "trades", http.MethodGet, path, nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("get %s trades failed: %w", marketType, err)
	}

	items, err := unwrapList(payload, "trades")
	if err != nil {
		// Не список, отдаём как есть
		return payload, nil
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	out, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trades: %w", err)
	}
	return out, nil
}
