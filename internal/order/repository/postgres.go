package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"blockmarket/internal/order"
)

const uniqueViolation = "23505"

const orderColumns = `id, exchange_order_id, client_order_id, account_id, market_type, side,
	instrument_id, price, quantity, filled_quantity, status, owner_id, created_at, updated_at`

type PostgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	o := &order.Order{}
	var exchangeOrderID, clientOrderID, accountID sql.NullString
	err := row.Scan(
		&o.ID,
		&exchangeOrderID,
		&clientOrderID,
		&accountID,
		&o.MarketType,
		&o.Side,
		&o.InstrumentID,
		&o.Price,
		&o.Quantity,
		&o.FilledQuantity,
		&o.Status,
		&o.OwnerID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if exchangeOrderID.Valid {
		o.ExchangeOrderID = &exchangeOrderID.String
	}
	if accountID.Valid {
		o.AccountID = &accountID.String
	}
	o.ClientOrderID = clientOrderID.String
	return o, nil
}

// nullIfEmpty: ордера с биржи без clientOrderId пишем как NULL (уникальный индекс)
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresOrderRepository) Create(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO orders (id, exchange_order_id, client_order_id, account_id, market_type, side,
			instrument_id, price, quantity, filled_quantity, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		o.ID,
		o.ExchangeOrderID,
		nullIfEmpty(o.ClientOrderID),
		o.AccountID,
		o.MarketType,
		o.Side,
		o.InstrumentID,
		o.Price,
		o.Quantity,
		o.FilledQuantity,
		o.Status,
		o.OwnerID,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", order.ErrDuplicate, pqErr.Constraint)
		}
		return err
	}
	return nil
}

func (r *PostgresOrderRepository) getOne(ctx context.Context, where string, arg any) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *PostgresOrderRepository) GetByExchangeOrderID(ctx context.Context, exchangeOrderID string) (*order.Order, error) {
	return r.getOne(ctx, `exchange_order_id = $1`, exchangeOrderID)
}

func (r *PostgresOrderRepository) GetByClientOrderID(ctx context.Context, clientOrderID string) (*order.Order, error) {
	return r.getOne(ctx, `client_order_id = $1`, clientOrderID)
}

// Update пишет только заданные поля, updated_at обновляется всегда
func (r *PostgresOrderRepository) Update(ctx context.Context, id string, u order.Update) error {
	if u.Empty() {
		return nil
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.ExchangeOrderID != nil {
		add("exchange_order_id", *u.ExchangeOrderID)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.FilledQuantity != nil {
		add("filled_quantity", *u.FilledQuantity)
	}
	if u.Side != nil {
		add("side", *u.Side)
	}
	if u.Price != nil {
		add("price", *u.Price)
	}
	if u.InstrumentID != nil {
		add("instrument_id", *u.InstrumentID)
	}
	if u.MarketType != nil {
		add("market_type", *u.MarketType)
	}
	if u.Quantity != nil {
		add("quantity", *u.Quantity)
	}
	if u.AccountID != nil {
		add("account_id", *u.AccountID)
	}
	if u.ClientOrderID != nil {
		add("client_order_id", nullIfEmpty(*u.ClientOrderID))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", order.ErrDuplicate, pqErr.Constraint)
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListByOwner ордера владельца, новые первыми; опционально один рынок
func (r *PostgresOrderRepository) ListByOwner(ctx context.Context, ownerID int64, marketType *order.MarketType) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE owner_id = $1`
	args := []any{ownerID}
	if marketType != nil {
		query += ` AND market_type = $2`
		args = append(args, *marketType)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOwnersWithOpenOrders владельцы, у которых есть незавершённые ордера
func (r *PostgresOrderRepository) ListOwnersWithOpenOrders(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT owner_id FROM orders WHERE status IN ($1, $2) ORDER BY owner_id`,
		order.StatusPending, order.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}
