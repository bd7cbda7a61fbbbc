package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrNoExchangeToken = errors.New("no valid exchange token")
)

type User struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
	// ExchangeToken хранится только в зашифрованном виде
	ExchangeToken          string     `json:"-"`
	ExchangeTokenExpiresAt *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}
