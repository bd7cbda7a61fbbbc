package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"

	ethgas "blockmarket/internal/ethgas/service"
	"blockmarket/internal/user"
)

// ExchangeTokenTTL сколько доверяем сохранённому токену биржи
const ExchangeTokenTTL = 7 * 24 * time.Hour

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrLoginFailed    = errors.New("exchange login failed")
)

// ExchangeAuth вход на бирже через подпись кошелька
type ExchangeAuth interface {
	Login(ctx context.Context, addr string) (*ethgas.LoginChallenge, error)
	VerifyLogin(ctx context.Context, addr, nonceHash, signature string) (*ethgas.VerifiedLogin, error)
	UserInfo(ctx context.Context, token string) (json.RawMessage, error)
}

// TokenCipher шифрует токены биржи перед записью в БД
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type Challenge struct {
	Status        string              `json:"status"`
	EIP712Message string              `json:"eip712Message"`
	NonceHash     string              `json:"nonceHash"`
	TypedData     *apitypes.TypedData `json:"typedData,omitempty"`
}

type UserService struct {
	repo     user.Repository
	exchange ExchangeAuth
	cipher   TokenCipher
	log      *zap.Logger
	now      func() time.Time
}

func NewUserService(repo user.Repository, exchange ExchangeAuth, cipher TokenCipher, log *zap.Logger) *UserService {
	return &UserService{
		repo:     repo,
		exchange: exchange,
		cipher:   cipher,
		log:      log.Named("users"),
		now:      time.Now,
	}
}

// normalizeAddress приводит адрес к checksum-форме EIP-55
func normalizeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(addr).Hex(), nil
}

// Login запрашивает у биржи challenge и создаёт пользователя, если его ещё нет
func (s *UserService) Login(ctx context.Context, address string) (*Challenge, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	ch, err := s.exchange.Login(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	if _, err := s.repo.Upsert(ctx, addr); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	out := &Challenge{Status: ch.Status, EIP712Message: ch.EIP712Message, NonceHash: ch.NonceHash}
	var td apitypes.TypedData
	if err := json.Unmarshal([]byte(ch.EIP712Message), &td); err != nil {
		s.log.Warn("challenge is not EIP-712 typed data, passing it through", zap.String("address", addr), zap.Error(err))
	} else {
		out.TypedData = &td
	}
	return out, nil
}

// Verify завершает вход и сохраняет токен биржи в зашифрованном виде
func (s *UserService) Verify(ctx context.Context, address, signature, nonceHash string) (*user.User, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	res, err := s.exchange.VerifyLogin(ctx, addr, nonceHash, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	u, err := s.repo.Upsert(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	encrypted, err := s.cipher.Encrypt(res.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt exchange token: %w", err)
	}
	expiresAt := s.now().Add(ExchangeTokenTTL)
	if err := s.repo.SetExchangeToken(ctx, u.ID, encrypted, expiresAt); err != nil {
		return nil, fmt.Errorf("store exchange token: %w", err)
	}
	u.ExchangeToken = encrypted
	u.ExchangeTokenExpiresAt = &expiresAt

	s.log.Info("wallet login verified", zap.Int64("user_id", u.ID), zap.String("address", addr))
	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return s.repo.GetByID(ctx, id)
}

// ExchangeToken возвращает расшифрованный токен биржи.
// Отсутствующий, просроченный или нечитаемый токен: user.ErrNoExchangeToken.
func (s *UserService) ExchangeToken(ctx context.Context, userID int64) (string, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", fmt.Errorf("user %d: %w", userID, user.ErrNoExchangeToken)
		}
		return "", err
	}
	if u.ExchangeToken == "" || u.ExchangeTokenExpiresAt == nil || !s.now().Before(*u.ExchangeTokenExpiresAt) {
		return "", fmt.Errorf("user %d: %w", userID, user.ErrNoExchangeToken)
	}

	token, err := s.cipher.Decrypt(u.ExchangeToken)
	if err != nil {
		s.log.Warn("stored exchange token unreadable", zap.Int64("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("user %d: %w", userID, user.ErrNoExchangeToken)
	}
	return token, nil
}

// ExchangeProfile профиль пользователя на бирже, как есть
func (s *UserService) ExchangeProfile(ctx context.Context, userID int64) (json.RawMessage, error) {
	token, err := s.ExchangeToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.exchange.UserInfo(ctx, token)
}
