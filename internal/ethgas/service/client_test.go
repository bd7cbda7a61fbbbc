package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blockmarket/internal/ethgas/entity"
	"blockmarket/internal/order"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, zap.NewNop())
}

func TestPlaceOrder_SendsBodyAndParsesEnvelope(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/wholeblock/order", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"success":true,"data":{"order":{"orderId":"X1","clientOrderId":"ab12cd34","status":0}}}`))
	})

	rec, err := c.PlaceOrder(context.Background(), "tok-1", order.PlaceRequest{
		MarketType:    order.MarketWholeblock,
		AccountID:     "acc-2",
		InstrumentID:  "ETH-WB-100",
		Side:          order.SideSell,
		Price:         "0.5",
		Quantity:      "1",
		ClientOrderID: "ab12cd34",
	})
	require.NoError(t, err)
	assert.Equal(t, "X1", rec.ExchangeOrderID)
	assert.Equal(t, order.StatusPending, rec.Status)

	assert.Equal(t, false, got["side"])
	assert.Equal(t, "acc-2", got["accountId"])
	assert.Equal(t, "limit", got["orderType"])
	assert.Equal(t, "ab12cd34", got["clientOrderId"])
}

func TestPlaceOrder_AcceptedWithoutID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
	})

	rec, err := c.PlaceOrder(context.Background(), "tok", order.PlaceRequest{MarketType: order.MarketInclusionPreconf})
	require.NoError(t, err)
	assert.Empty(t, rec.ExchangeOrderID)
}

func TestPlaceOrder_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"insufficient balance"}`))
	})

	_, err := c.PlaceOrder(context.Background(), "tok", order.PlaceRequest{MarketType: order.MarketWholeblock})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "insufficient balance", apiErr.Message)
}

func TestRequest_SuccessFalseOn200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"bad instrument"}`))
	})

	err := c.CancelOrder(context.Background(), "tok", order.CancelRequest{MarketType: order.MarketWholeblock, ExchangeOrderID: "X1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad instrument", apiErr.Message)
}

func TestCredentialIsPerCall(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Query().Get("accountId")] = r.Header.Get("Authorization")
		mu.Unlock()
		_, _ = w.Write([]byte(`[]`))
	})

	var wg sync.WaitGroup
	for _, u := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			_, err := c.ListOrders(context.Background(), "tok-"+u, u, order.MarketWholeblock)
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	for _, u := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, "Bearer tok-"+u, seen[u])
	}
}

func TestPublicCallsSendNoCredential(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/p/inclusion-preconf/markets", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"markets":[{"id":1}]}}`))
	})

	data, err := c.Markets(context.Background(), order.MarketInclusionPreconf)
	require.NoError(t, err)
	assert.JSONEq(t, `{"markets":[{"id":1}]}`, string(data))
}

func TestListOrders_MixedPayloadShapes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/user/inclusion-preconf/orders", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"orders":[
			{"orderId":"A","status":10,"fulfilled":"5","quantity":"5","isBuy":true},
			{"exchangeOrderId":"B","status":"cancelled","side":"sell","marketType":"wholeblock"},
			{"id":7,"status":"1","instrumentId":"ETH-PC-9","price":0.25},
			{"status":1},
			{"orderId":"E","status":42,"side":"maybe"},
			{"orderId":"F","price":"abc"}
		]}}`))
	})

	recs, err := c.ListOrders(context.Background(), "tok", "", order.MarketInclusionPreconf)
	require.NoError(t, err)
	require.Len(t, recs, 6)

	assert.Equal(t, "A", recs[0].ExchangeOrderID)
	assert.Equal(t, order.StatusFilled, recs[0].Status)
	require.NotNil(t, recs[0].FilledQuantity)
	assert.Equal(t, "5", *recs[0].FilledQuantity)
	require.NotNil(t, recs[0].Side)
	assert.Equal(t, order.SideBuy, *recs[0].Side)

	assert.Equal(t, order.StatusCancelled, recs[1].Status)
	require.NotNil(t, recs[1].MarketType)
	assert.Equal(t, order.MarketWholeblock, *recs[1].MarketType)
	assert.Equal(t, order.SideSell, *recs[1].Side)

	assert.Equal(t, "7", recs[2].ExchangeOrderID)
	assert.Equal(t, order.StatusActive, recs[2].Status)
	assert.Equal(t, order.MarketInclusionPreconf, *recs[2].MarketType)
	assert.Equal(t, "0.25", *recs[2].Price)

	assert.ErrorIs(t, recs[3].Err, entity.ErrMissingOrderID)

	assert.NoError(t, recs[4].Err)
	assert.Equal(t, order.StatusPending, recs[4].Status)
	assert.Nil(t, recs[4].Side)

	assert.Error(t, recs[5].Err)
}

func TestListOrders_BareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acc-1", r.URL.Query().Get("accountId"))
		_, _ = w.Write([]byte(`[{"orderId":"A","status":0}]`))
	})

	recs, err := c.ListOrders(context.Background(), "tok", "acc-1", order.MarketWholeblock)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "A", recs[0].ExchangeOrderID)
}

func TestListAccounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/user/accounts", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"accounts":[
			{"accountId":101,"type":1,"name":"funding"},
			{"accountId":"102","type":"2","name":"trading"},
			{"name":"broken"}
		]}}`))
	})

	accs, err := c.ListAccounts(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, accs, 2)
	assert.Equal(t, order.Account{ID: "101", Type: 1, Name: "funding"}, accs[0])
	assert.Equal(t, order.Account{ID: "102", Type: 2, Name: "trading"}, accs[1])
}

func TestLoginAndVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/user/login":
			assert.Equal(t, "0xabc", r.URL.Query().Get("addr"))
			_, _ = w.Write([]byte(`{"success":true,"data":{"status":"ok","eip712Message":"{}","nonceHash":"n1"}}`))
		case "/api/v1/user/login/verify":
			assert.Equal(t, "n1", r.URL.Query().Get("nonceHash"))
			assert.Equal(t, "0xsig", r.URL.Query().Get("signature"))
			_, _ = w.Write([]byte(`{"success":true,"data":{"accessToken":{"token":"jwt-x"},"user":{"userId":5}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ch, err := c.Login(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "n1", ch.NonceHash)

	v, err := c.VerifyLogin(context.Background(), "0xabc", "n1", "0xsig")
	require.NoError(t, err)
	assert.Equal(t, "jwt-x", v.AccessToken)
}

func TestVerifyLogin_NoToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"user":{}}}`))
	})

	_, err := c.VerifyLogin(context.Background(), "0xabc", "n1", "0xsig")
	assert.ErrorIs(t, err, ErrMissingAccessToken)
}

func TestTrades_UnwrapsList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"trades":[{"p":"1"}]}}`))
	})

	data, err := c.Trades(context.Background(), order.MarketWholeblock)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"p":"1"}]`, string(data))
}

func TestRequest_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, 50*time.Millisecond, zap.NewNop())

	_, err := c.ListAccounts(context.Background(), "tok")
	assert.Error(t, err)
}

func TestUserInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/user/info", r.URL.Path)
		assert.Equal(t, "Bearer tok-9", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"userId":9,"address":"0xabc"}}`))
	})

	info, err := c.UserInfo(context.Background(), "tok-9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":9,"address":"0xabc"}`, string(info))
}
