package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	ethgas "blockmarket/internal/ethgas/service"
	"blockmarket/internal/user"
	"blockmarket/pkg/crypto"
)

const (
	lowerAddr   = "0x52908400098527886e0f7030069857d2e4169ee7"
	checksummed = "0x52908400098527886E0F7030069857D2E4169EE7"
)

type memUsers struct {
	byID map[int64]*user.User
	next int64
}

func newMemUsers() *memUsers { return &memUsers{byID: map[int64]*user.User{}} }

func (m *memUsers) Upsert(_ context.Context, address string) (*user.User, error) {
	for _, u := range m.byID {
		if u.Address == address {
			cp := *u
			return &cp, nil
		}
	}
	m.next++
	u := &user.User{ID: m.next, Address: address}
	m.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByAddress(_ context.Context, address string) (*user.User, error) {
	for _, u := range m.byID {
		if u.Address == address {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) SetExchangeToken(_ context.Context, id int64, enc string, exp time.Time) error {
	u, ok := m.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	u.ExchangeToken = enc
	u.ExchangeTokenExpiresAt = &exp
	return nil
}

type fakeExchange struct {
	loginAddr string
	challenge *ethgas.LoginChallenge
	verified  *ethgas.VerifiedLogin
	err       error
	infoToken string
}

func (f *fakeExchange) Login(_ context.Context, addr string) (*ethgas.LoginChallenge, error) {
	f.loginAddr = addr
	return f.challenge, f.err
}

func (f *fakeExchange) VerifyLogin(context.Context, string, string, string) (*ethgas.VerifiedLogin, error) {
	return f.verified, f.err
}

func (f *fakeExchange) UserInfo(_ context.Context, token string) (json.RawMessage, error) {
	f.infoToken = token
	return json.RawMessage(`{"userId":5}`), f.err
}

const typedData = `{
	"types": {
		"EIP712Domain": [{"name": "name", "type": "string"}, {"name": "chainId", "type": "uint256"}],
		"data": [{"name": "hash", "type": "string"}]
	},
	"primaryType": "data",
	"domain": {"name": "ETHGas Login", "chainId": "560048"},
	"message": {"hash": "abc"}
}`

func newService(t *testing.T, ex *fakeExchange) (*UserService, *memUsers) {
	t.Helper()
	c, err := crypto.NewCipher("test-encryption-secret")
	require.NoError(t, err)
	repo := newMemUsers()
	return NewUserService(repo, ex, c, zap.NewNop()), repo
}

func TestLogin(t *testing.T) {
	ex := &fakeExchange{challenge: &ethgas.LoginChallenge{Status: "ok", EIP712Message: typedData, NonceHash: "n1"}}
	s, repo := newService(t, ex)

	ch, err := s.Login(context.Background(), lowerAddr)
	require.NoError(t, err)
	assert.Equal(t, checksummed, ex.loginAddr)
	assert.Equal(t, "n1", ch.NonceHash)
	require.NotNil(t, ch.TypedData)
	assert.Equal(t, "data", ch.TypedData.PrimaryType)

	u, err := repo.GetByAddress(context.Background(), checksummed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
}

func TestLogin_InvalidAddress(t *testing.T) {
	ex := &fakeExchange{}
	s, _ := newService(t, ex)

	_, err := s.Login(context.Background(), "0x1234")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Empty(t, ex.loginAddr)
}

func TestVerifyAndExchangeToken(t *testing.T) {
	ex := &fakeExchange{verified: &ethgas.VerifiedLogin{AccessToken: "exchange-jwt"}}
	s, repo := newService(t, ex)

	u, err := s.Verify(context.Background(), lowerAddr, "0xsig", "n1")
	require.NoError(t, err)

	stored, _ := repo.GetByID(context.Background(), u.ID)
	assert.NotEqual(t, "exchange-jwt", stored.ExchangeToken)

	token, err := s.ExchangeToken(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "exchange-jwt", token)

	s.now = func() time.Time { return time.Now().Add(ExchangeTokenTTL + time.Minute) }
	_, err = s.ExchangeToken(context.Background(), u.ID)
	assert.ErrorIs(t, err, user.ErrNoExchangeToken)
}

func TestExchangeToken_Missing(t *testing.T) {
	s, repo := newService(t, &fakeExchange{})
	u, _ := repo.Upsert(context.Background(), checksummed)

	_, err := s.ExchangeToken(context.Background(), u.ID)
	assert.ErrorIs(t, err, user.ErrNoExchangeToken)

	_, err = s.ExchangeToken(context.Background(), 404)
	assert.ErrorIs(t, err, user.ErrNoExchangeToken)

	require.NoError(t, repo.SetExchangeToken(context.Background(), u.ID, "garbage", time.Now().Add(time.Hour)))
	_, err = s.ExchangeToken(context.Background(), u.ID)
	assert.ErrorIs(t, err, user.ErrNoExchangeToken)
}

func TestVerify_ExchangeFailure(t *testing.T) {
	s, repo := newService(t, &fakeExchange{err: errors.New("bad signature")})

	_, err := s.Verify(context.Background(), lowerAddr, "0xsig", "n1")
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.Empty(t, repo.byID)
}

func TestExchangeProfile(t *testing.T) {
	ex := &fakeExchange{verified: &ethgas.VerifiedLogin{AccessToken: "exchange-jwt"}}
	s, repo := newService(t, ex)

	u, err := s.Verify(context.Background(), lowerAddr, "0xsig", "n1")
	require.NoError(t, err)

	profile, err := s.ExchangeProfile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":5}`, string(profile))
	assert.Equal(t, "exchange-jwt", ex.infoToken)

	other, _ := repo.Upsert(context.Background(), "0x00000000000000000000000000000000000000A1")
	_, err = s.ExchangeProfile(context.Background(), other.ID)
	assert.ErrorIs(t, err, user.ErrNoExchangeToken)
}
