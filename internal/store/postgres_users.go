package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meujardineiro/backend/internal/marketplace"
	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/user"
)

type PostgresUsers struct {
	pool *pgxpool.Pool
}

func NewPostgresUsers(pool *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{pool: pool}
}

const userColumns = `id, role, name, email, password_hash, phone, address, is_active,
	COALESCE(cpf_cnpj, ''), company_name, specialties, service_radius_km, latitude, longitude,
	availability, rating, total_services, created_at, updated_at`

func sessionRole(s string) session.Role { return session.Role(s) }

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u           user.User
		role        string
		specialties []string
	)
	err := row.Scan(
		&u.ID, &role, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Address, &u.Active,
		&u.CPFCNPJ, &u.CompanyName, &specialties, &u.ServiceRadiusKm, &u.Latitude, &u.Longitude,
		&u.Availability, &u.Rating, &u.TotalServices, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = sessionRole(role)
	for _, s := range specialties {
		u.Specialties = append(u.Specialties, marketplace.ServiceType(s))
	}
	return &u, nil
}

func specialtyStrings(in []marketplace.ServiceType) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

func (s *PostgresUsers) Create(ctx context.Context, u *user.User) error {
	u.Email = strings.ToLower(u.Email)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	var doc *string
	if u.CPFCNPJ != "" {
		doc = &u.CPFCNPJ
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, role, name, email, password_hash, phone, address, is_active,
			cpf_cnpj, company_name, specialties, service_radius_km, latitude, longitude, availability)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		u.ID, string(u.Role), u.Name, u.Email, u.PasswordHash, u.Phone, u.Address, u.Active,
		doc, u.CompanyName, specialtyStrings(u.Specialties), u.ServiceRadiusKm, u.Latitude, u.Longitude, u.Availability,
	).Scan(&u.CreatedAt, &u.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "cpf") {
			return user.ErrDocumentTaken
		}
		return user.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUsers) get(ctx context.Context, where string, arg any) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresUsers) Get(ctx context.Context, id string) (*user.User, error) {
	if !validID(id) {
		return nil, user.ErrNotFound
	}
	return s.get(ctx, `id = $1`, id)
}

func (s *PostgresUsers) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.get(ctx, `email = $1`, strings.ToLower(email))
}

func (s *PostgresUsers) Update(ctx context.Context, id string, p user.Update) (*user.User, error) {
	if !validID(id) {
		return nil, user.ErrNotFound
	}
	var l setList
	if p.Name != nil {
		l.add("name", *p.Name)
	}
	if p.Phone != nil {
		l.add("phone", *p.Phone)
	}
	if p.Address != nil {
		l.add("address", *p.Address)
	}
	if p.CompanyName != nil {
		l.add("company_name", *p.CompanyName)
	}
	if p.Availability != nil {
		l.add("availability", *p.Availability)
	}
	if p.Specialties != nil {
		l.add("specialties", specialtyStrings(p.Specialties))
	}
	if p.ServiceRadiusKm != nil {
		l.add("service_radius_km", *p.ServiceRadiusKm)
	}
	if p.Latitude != nil {
		l.add("latitude", *p.Latitude)
	}
	if p.Longitude != nil {
		l.add("longitude", *p.Longitude)
	}
	l.sets = append(l.sets, "updated_at = NOW()")

	query := `UPDATE users SET ` + strings.Join(l.sets, ", ") + ` WHERE id = ` + l.arg(id) + ` RETURNING ` + userColumns
	u, err := scanUser(s.pool.QueryRow(ctx, query, l.args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *PostgresUsers) exec(ctx context.Context, query string, args ...any) error {
	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (s *PostgresUsers) SetActive(ctx context.Context, id string, active bool) error {
	if !validID(id) {
		return user.ErrNotFound
	}
	return s.exec(ctx, `UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
}

func (s *PostgresUsers) SetPassword(ctx context.Context, id, hash string) error {
	if !validID(id) {
		return user.ErrNotFound
	}
	return s.exec(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
}

func (s *PostgresUsers) SetRoleByEmail(ctx context.Context, email string, role session.Role) error {
	return s.exec(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE email = $2`, string(role), strings.ToLower(email))
}

func (s *PostgresUsers) SetProviderStats(ctx context.Context, providerID string, rating float64, totalServices int) error {
	if !validID(providerID) {
		return user.ErrNotFound
	}
	return s.exec(ctx, `UPDATE users SET rating = $1, total_services = $2 WHERE id = $3`, rating, totalServices, providerID)
}

func (s *PostgresUsers) List(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	where := ""
	var args []any
	if f.Role != "" {
		where = `WHERE role = $1`
		args = append(args, string(f.Role))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

func (s *PostgresUsers) CountByRole(ctx context.Context) (map[session.Role]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	defer rows.Close()

	counts := make(map[session.Role]int)
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[sessionRole(role)] = n
	}
	return counts, rows.Err()
}
