package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

var ErrMissingAccessToken = errors.New("verify response carries no access token")

// LoginChallenge EIP-712 challenge для кошелька
type LoginChallenge struct {
	Status string `json:"status"`
	// typed data строкой JSON
	EIP712Message string `json:"eip712Message"`
	NonceHash     string `json:"nonceHash"`
}

type VerifiedLogin struct {
	AccessToken string
	User        json.RawMessage
}

type verifyPayload struct {
	AccessToken struct {
		Token string `json:"token"`
	} `json:"accessToken"`
	User json.RawMessage `json:"user"`
}

// Login запрашивает challenge на подпись для addr
func (c *Client) Login(ctx context.Context, addr string) (*LoginChallenge, error) {
	query := url.Values{"addr": {addr}}
	payload, err := c.request(ctx, "login", http.MethodPost, APIVersion+"/user/login", query, "", nil)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	var ch LoginChallenge
	if err := json.Unmarshal(payload, &ch); err != nil {
		return nil, fmt.Errorf("failed to parse login challenge: %w", err)
	}
	if ch.NonceHash == "" || ch.EIP712Message == "" {
		return nil, fmt.Errorf("login challenge incomplete")
	}
	return &ch, nil
}

// VerifyLogin меняет подписанный challenge на access token
func (c *Client) VerifyLogin(ctx context.Context, addr, nonceHash, signature string) (*VerifiedLogin, error) {
	query := url.Values{
		"addr":      {addr},
		"nonceHash": {nonceHash},
		"signature": {signature},
	}
	payload, err := c.request(ctx, "login_verify", http.MethodPost, APIVersion+"/user/login/verify", query, "", nil)
	if err != nil {
		return nil, fmt.Errorf("login verification failed: %w", err)
	}

	var p verifyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to parse verify response: %w", err)
	}
	if p.AccessToken.Token == "" {
		return nil, ErrMissingAccessToken
	}
	return &VerifiedLogin{AccessToken: p.AccessToken.Token, User: p.User}, nil
}

// UserInfo профиль владельца токена, без разбора
func (c *Client) UserInfo(ctx context.Context, token string) (json.RawMessage, error) {
	payload, err := c.request(ctx, "user_info", http.MethodGet, APIVersion+"/user/info", nil, token, nil)
	if err != nil {
		return nil, fmt.Errorf("get user info failed: %w", err)
	}
	return payload, nil
}
