package order

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Статусы биржи
const (
	exchangeStatusPending       = 0
	exchangeStatusActive        = 1
	exchangeStatusFilled        = 10
	exchangeStatusCancelled     = 11
	exchangeStatusCancelledUser = 12
	exchangeStatusPartialFill   = 13
	exchangeStatusExpired       = 14
	exchangeStatusError         = 99
)

var statusByCode = map[int64]Status{
	exchangeStatusPending:       StatusPending,
	exchangeStatusActive:        StatusActive,
	exchangeStatusFilled:        StatusFilled,
	exchangeStatusCancelled:     StatusCancelled,
	exchangeStatusCancelledUser: StatusCancelled,
	exchangeStatusPartialFill:   StatusActive,
	exchangeStatusExpired:       StatusExpired,
	exchangeStatusError:         StatusPending,
}

var statusByName = map[string]Status{
	"pending":   StatusPending,
	"active":    StatusActive,
	"filled":    StatusFilled,
	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
	"expired":   StatusExpired,
}

// NormalizeStatus приводит статус биржи (код, число строкой или имя) к Status.
// Неизвестное или пустое значение: StatusPending, ok=false.
func NormalizeStatus(v any) (Status, bool) {
	if code, ok := integer(v); ok {
		if s, found := statusByCode[code]; found {
			return s, true
		}
		return StatusPending, false
	}
	if s, ok := v.(string); ok {
		if s, found := statusByName[strings.ToLower(strings.TrimSpace(s))]; found {
			return s, true
		}
	}
	return StatusPending, false
}

// NormalizeSide: bool, число или строка в Side.
// true, 1, "buy", "true", "1" это buy, противоположные значения sell.
// Всё остальное: SideBuy, ok=false.
func NormalizeSide(v any) (Side, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return SideBuy, true
		}
		return SideSell, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "buy", "true", "1":
			return SideBuy, true
		case "sell", "false", "0":
			return SideSell, true
		}
		return SideBuy, false
	}
	if n, ok := integer(v); ok {
		switch n {
		case 1:
			return SideBuy, true
		case 0:
			return SideSell, true
		}
	}
	return SideBuy, false
}

// MarketTypeFromInstrument определяет рынок по имени инструмента:
// <ASSET>-WB-<slot> wholeblock, <ASSET>-PC-<slot> inclusion-preconf
func MarketTypeFromInstrument(instrumentID string) (MarketType, bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(instrumentID)), "-")
	if len(parts) < 2 {
		return "", false
	}
	switch parts[1] {
	case "WB":
		return MarketWholeblock, true
	case "PC":
		return MarketInclusionPreconf, true
	}
	return "", false
}

// integer достаёт целое из любых числовых форм после json декодирования
func integer(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}
