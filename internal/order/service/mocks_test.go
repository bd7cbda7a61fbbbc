package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"blockmarket/internal/order"
	"blockmarket/internal/user"
)

// memRepo order.Repository в памяти, с теми же уникальными ключами, что у таблицы
type memRepo struct {
	mu      sync.Mutex
	orders  map[string]*order.Order
	seq     int
	creates int
	updates int

	failCreate error
	failUpdate error
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[string]*order.Order{}}
}

func (r *memRepo) put(o *order.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	cp := *o
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Unix(int64(r.seq), 0)
	}
	r.orders[cp.ID] = &cp
}

func (r *memRepo) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	for _, existing := range r.orders {
		if existing.ID == o.ID {
			return fmt.Errorf("%w: orders_pkey", order.ErrDuplicate)
		}
		if o.ExchangeOrderID != nil && existing.ExchangeOrderID != nil && *existing.ExchangeOrderID == *o.ExchangeOrderID {
			return fmt.Errorf("%w: orders_exchange_order_id_key", order.ErrDuplicate)
		}
		if o.ClientOrderID != "" && existing.ClientOrderID == o.ClientOrderID {
			return fmt.Errorf("%w: orders_client_order_id_key", order.ErrDuplicate)
		}
	}
	r.seq++
	r.creates++
	o.CreatedAt = time.Unix(int64(r.seq), 0)
	o.UpdatedAt = o.CreatedAt
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memRepo) find(match func(*order.Order) bool) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if match(o) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (r *memRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	return r.find(func(o *order.Order) bool { return o.ID == id })
}

func (r *memRepo) GetByExchangeOrderID(_ context.Context, id string) (*order.Order, error) {
	return r.find(func(o *order.Order) bool { return o.ExchangeOrderID != nil && *o.ExchangeOrderID == id })
}

func (r *memRepo) GetByClientOrderID(_ context.Context, id string) (*order.Order, error) {
	return r.find(func(o *order.Order) bool { return o.ClientOrderID == id })
}

func (r *memRepo) Update(_ context.Context, id string, u order.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	o, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	r.updates++
	u.Apply(o)
	o.UpdatedAt = o.UpdatedAt.Add(time.Second)
	return nil
}

func (r *memRepo) ListByOwner(_ context.Context, owner int64, mt *order.MarketType) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*order.Order, 0)
	for _, o := range r.orders {
		if o.OwnerID != owner || (mt != nil && o.MarketType != *mt) {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) ListOwnersWithOpenOrders(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int64]bool{}
	var owners []int64
	for _, o := range r.orders {
		if !o.Status.IsTerminal() && !seen[o.OwnerID] {
			seen[o.OwnerID] = true
			owners = append(owners, o.OwnerID)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners, nil
}

func (r *memRepo) snapshot() map[string]order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]order.Order, len(r.orders))
	for id, o := range r.orders {
		out[id] = *o
	}
	return out
}

// fakeGateway запоминает вызовы и отдаёт заготовленные ответы
type fakeGateway struct {
	mu sync.Mutex

	accounts    []order.Account
	accountsErr error

	placeResp *order.ExchangeOrder
	placeErr  error
	placed    []order.PlaceRequest
	// onPlace вызывается после принятия ордера биржей, до возврата из PlaceOrder
	onPlace func()

	cancelErr error
	cancelled []order.CancelRequest

	listings   map[order.MarketType][]order.ExchangeOrder
	listErr    map[order.MarketType]error
	listTokens []string
}

func (g *fakeGateway) PlaceOrder(_ context.Context, _ string, req order.PlaceRequest) (*order.ExchangeOrder, error) {
	g.mu.Lock()
	g.placed = append(g.placed, req)
	hook := g.onPlace
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return g.placeResp, g.placeErr
}

func (g *fakeGateway) CancelOrder(_ context.Context, _ string, req order.CancelRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, req)
	return g.cancelErr
}

func (g *fakeGateway) ListOrders(_ context.Context, token, _ string, mt order.MarketType) ([]order.ExchangeOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listTokens = append(g.listTokens, token)
	if err := g.listErr[mt]; err != nil {
		return nil, err
	}
	return g.listings[mt], nil
}

func (g *fakeGateway) ListAccounts(context.Context, string) ([]order.Account, error) {
	return g.accounts, g.accountsErr
}

// fakeCreds выдаёт "tok-<owner>", если владелец не в missing
type fakeCreds struct {
	missing map[int64]bool
}

func (c fakeCreds) ExchangeToken(_ context.Context, owner int64) (string, error) {
	if c.missing[owner] {
		return "", fmt.Errorf("user %d: %w", owner, user.ErrNoExchangeToken)
	}
	return fmt.Sprintf("tok-%d", owner), nil
}

var errUpstream = errors.New("upstream unavailable")

func strp(s string) *string { return &s }

func sidep(s order.Side) *order.Side { return &s }

func marketp(m order.MarketType) *order.MarketType { return &m }
