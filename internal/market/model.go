package market

import (
	"encoding/json"
	"errors"
	"time"

	"blockmarket/internal/order"
)

var ErrNotFound = errors.New("market snapshot not found")

// Snapshot закэшированный список рынков биржи
type Snapshot struct {
	MarketType order.MarketType `json:"marketType"`
	Data       json.RawMessage  `json:"data"`
	FetchedAt  time.Time        `json:"fetchedAt"`
	ExpiresAt  time.Time        `json:"expiresAt"`
}

func (s *Snapshot) Fresh(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
