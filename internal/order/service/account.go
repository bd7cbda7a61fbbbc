package service

import (
	"errors"

	"blockmarket/internal/order"
)

// DefaultTradingAccountType код торгового счёта на бирже
const DefaultTradingAccountType = 2

var ErrNoTradingAccount = errors.New("no trading account available")

// AccountResolver выбирает счёт для ордеров
type AccountResolver struct {
	TradingType int
}

func NewAccountResolver(tradingType int) AccountResolver {
	if tradingType == 0 {
		tradingType = DefaultTradingAccountType
	}
	return AccountResolver{TradingType: tradingType}
}

// Resolve первый торговый счёт, иначе просто первый
func (r AccountResolver) Resolve(accounts []order.Account) (order.Account, error) {
	if len(accounts) == 0 {
		return order.Account{}, ErrNoTradingAccount
	}
	for _, acc := range accounts {
		if acc.Type == r.TradingType {
			return acc, nil
		}
	}
	return accounts[0], nil
}
