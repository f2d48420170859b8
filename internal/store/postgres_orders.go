package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meujardineiro/backend/internal/marketplace"
)

// PostgresOrders stores orders in service_orders and the proposal log in
// negotiations.
type PostgresOrders struct {
	pool *pgxpool.Pool
}

func NewPostgresOrders(pool *pgxpool.Pool) *PostgresOrders {
	return &PostgresOrders{pool: pool}
}

const orderColumns = `id, customer_id, provider_id, counter_provider_id, service_type, description,
	area, address, latitude, longitude, desired_date, photos, status,
	customer_proposed_value, provider_proposed_value, final_value, rating, review,
	version, created_at, updated_at`

func scanOrder(row pgx.Row) (*marketplace.ServiceOrder, error) {
	var (
		o                        marketplace.ServiceOrder
		customerVal, providerVal decimal.NullDecimal
		finalVal                 decimal.NullDecimal
		rating                   *int16
		serviceType, status      string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.ProviderID, &o.CounterProviderID, &serviceType, &o.Description,
		&o.Area, &o.Address, &o.Latitude, &o.Longitude, &o.DesiredDate, &o.Photos, &status,
		&customerVal, &providerVal, &finalVal, &rating, &o.Review,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ServiceType = marketplace.ServiceType(serviceType)
	o.Status = marketplace.Status(status)
	o.CustomerProposedValue = fromNull(customerVal)
	o.ProviderProposedValue = fromNull(providerVal)
	o.FinalValue = fromNull(finalVal)
	if rating != nil {
		r := int(*rating)
		o.Rating = &r
	}
	if o.Photos == nil {
		o.Photos = []string{}
	}
	return &o, nil
}

func fromNull(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func (s *PostgresOrders) Create(ctx context.Context, o *marketplace.ServiceOrder, log ...marketplace.Negotiation) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	photos := o.Photos
	if photos == nil {
		photos = []string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO service_orders (id, customer_id, service_type, description, area, address,
			latitude, longitude, desired_date, photos, status, customer_proposed_value,
			version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.CustomerID, string(o.ServiceType), o.Description, o.Area, o.Address,
		o.Latitude, o.Longitude, o.DesiredDate, photos, string(o.Status), o.CustomerProposedValue,
		o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}
	for _, n := range log {
		n.OrderID = o.ID
		if err := insertNegotiation(ctx, tx, n); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return o.ID, nil
}

func insertNegotiation(ctx context.Context, tx pgx.Tx, n marketplace.Negotiation) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO negotiations (id, order_id, user_id, role, proposed_value, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.OrderID, n.UserID, string(n.Role), n.ProposedValue, n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert negotiation: %w", err)
	}
	return nil
}

// validID reports whether id can be compared against a uuid column. Postgres
// rejects malformed literals with an error instead of matching nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *PostgresOrders) Get(ctx context.Context, id string) (*marketplace.ServiceOrder, error) {
	if !validID(id) {
		return nil, marketplace.ErrNotFound
	}
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM service_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, marketplace.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *PostgresOrders) ListByCustomer(ctx context.Context, customerID string) ([]marketplace.ServiceOrder, error) {
	if !validID(customerID) {
		return nil, nil
	}
	return s.list(ctx, `WHERE customer_id = $1`, customerID)
}

func (s *PostgresOrders) ListByProvider(ctx context.Context, providerID string) ([]marketplace.ServiceOrder, error) {
	if !validID(providerID) {
		return nil, nil
	}
	return s.list(ctx, `WHERE provider_id = $1`, providerID)
}

func (s *PostgresOrders) ListUnassignedNegotiable(ctx context.Context) ([]marketplace.ServiceOrder, error) {
	return s.list(ctx, `WHERE provider_id IS NULL AND status IN ('awaiting_acceptance', 'negotiating')`)
}

func (s *PostgresOrders) list(ctx context.Context, where string, args ...any) ([]marketplace.ServiceOrder, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM service_orders `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []marketplace.ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// setList accumulates "col = $n" fragments for a dynamic UPDATE.
type setList struct {
	sets []string
	args []any
}

func (l *setList) add(col string, v any) {
	l.args = append(l.args, v)
	l.sets = append(l.sets, fmt.Sprintf("%s = $%d", col, len(l.args)))
}

func (l *setList) arg(v any) string {
	l.args = append(l.args, v)
	return fmt.Sprintf("$%d", len(l.args))
}

// buildOrderUpdate renders the conditional UPDATE for p. With a
// precondition the row only matches while status and version are unchanged.
func buildOrderUpdate(id string, p marketplace.Patch, pre *marketplace.Precondition) (string, []any) {
	var l setList
	if p.Status != nil {
		l.add("status", string(*p.Status))
	}
	if p.ProviderID != nil {
		l.add("provider_id", *p.ProviderID)
	}
	if p.CounterProviderID != nil {
		l.add("counter_provider_id", *p.CounterProviderID)
	}
	if p.CustomerProposedValue != nil {
		l.add("customer_proposed_value", *p.CustomerProposedValue)
	}
	if p.ProviderProposedValue != nil {
		l.add("provider_proposed_value", *p.ProviderProposedValue)
	}
	if p.FinalValue != nil {
		l.add("final_value", *p.FinalValue)
	}
	if p.Rating != nil {
		l.add("rating", *p.Rating)
	}
	if p.Review != nil {
		l.add("review", *p.Review)
	}
	if p.UpdatedAt.IsZero() {
		l.sets = append(l.sets, "updated_at = NOW()")
	} else {
		l.add("updated_at", p.UpdatedAt)
	}
	l.sets = append(l.sets, "version = version + 1")

	where := "id = " + l.arg(id)
	if pre != nil {
		where += " AND status = " + l.arg(string(pre.Status)) + " AND version = " + l.arg(pre.Version)
	}
	query := `UPDATE service_orders SET ` + strings.Join(l.sets, ", ") + ` WHERE ` + where + ` RETURNING ` + orderColumns
	return query, l.args
}

// Update runs the conditional write and the optional negotiation insert in
// one transaction.
func (s *PostgresOrders) Update(ctx context.Context, id string, p marketplace.Patch, pre *marketplace.Precondition) (*marketplace.ServiceOrder, error) {
	if !validID(id) {
		return nil, marketplace.ErrNotFound
	}
	query, args := buildOrderUpdate(id, p, pre)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.missOrConflict(ctx, tx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if p.Negotiation != nil {
		n := *p.Negotiation
		n.OrderID = id
		if err := insertNegotiation(ctx, tx, n); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}

// missOrConflict tells a missing order from a failed precondition.
func (s *PostgresOrders) missOrConflict(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM service_orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return marketplace.ErrNotFound
	}
	return marketplace.ErrConflict
}

func (s *PostgresOrders) ListNegotiations(ctx context.Context, orderID string) ([]marketplace.Negotiation, error) {
	if !validID(orderID) {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, user_id, role, proposed_value, message, created_at
		FROM negotiations
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}
	defer rows.Close()

	var out []marketplace.Negotiation
	for rows.Next() {
		var (
			n    marketplace.Negotiation
			role string
		)
		if err := rows.Scan(&n.ID, &n.OrderID, &n.UserID, &role, &n.ProposedValue, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan negotiation: %w", err)
		}
		n.Role = sessionRole(role)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresOrders) CountByStatus(ctx context.Context) (map[marketplace.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM service_orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	defer rows.Close()

	counts := make(map[marketplace.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[marketplace.Status(status)] = n
	}
	return counts, rows.Err()
}
