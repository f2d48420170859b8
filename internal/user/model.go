package user

import (
	"context"
	"errors"
	"time"

	"github.com/meujardineiro/backend/internal/marketplace"
	"github.com/meujardineiro/backend/internal/session"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrDocumentTaken = errors.New("cpf/cnpj already registered")
)

// User is an account together with its profile. Provider-only fields are
// empty for customers and admins.
type User struct {
	ID           string       `json:"id"`
	Role         session.Role `json:"role"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // never return
	Phone        string       `json:"phone"`
	Address      string       `json:"address"`
	Active       bool         `json:"active"`

	CPFCNPJ         string                    `json:"cpf_cnpj,omitempty"`
	CompanyName     string                    `json:"company_name,omitempty"`
	Specialties     []marketplace.ServiceType `json:"specialties,omitempty"`
	ServiceRadiusKm float64                   `json:"service_radius_km,omitempty"`
	Latitude        *float64                  `json:"latitude,omitempty"`
	Longitude       *float64                  `json:"longitude,omitempty"`
	Availability    string                    `json:"availability,omitempty"`
	Rating          float64                   `json:"rating"`
	TotalServices   int                       `json:"total_services"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicProfile is what other users may see.
type PublicProfile struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	Role            session.Role              `json:"role"`
	CompanyName     string                    `json:"company_name,omitempty"`
	Specialties     []marketplace.ServiceType `json:"specialties,omitempty"`
	Availability    string                    `json:"availability,omitempty"`
	ServiceRadiusKm float64                   `json:"service_radius_km,omitempty"`
	Rating          float64                   `json:"rating,omitempty"`
	TotalServices   int                       `json:"total_services,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

func (u *User) Public() PublicProfile {
	p := PublicProfile{ID: u.ID, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
	if u.Role == session.RoleProvider {
		p.CompanyName = u.CompanyName
		p.Specialties = u.Specialties
		p.Availability = u.Availability
		p.ServiceRadiusKm = u.ServiceRadiusKm
		p.Rating = u.Rating
		p.TotalServices = u.TotalServices
	}
	return p
}

// Clone returns a copy that shares no pointers with u.
func (u *User) Clone() *User {
	c := *u
	c.Specialties = append([]marketplace.ServiceType(nil), u.Specialties...)
	if u.Latitude != nil {
		v := *u.Latitude
		c.Latitude = &v
	}
	if u.Longitude != nil {
		v := *u.Longitude
		c.Longitude = &v
	}
	return &c
}

// Update lists the self-editable fields. Nil means unchanged.
type Update struct {
	Name            *string                   `json:"name" validate:"omitempty,min=2,max=120"`
	Phone           *string                   `json:"phone" validate:"omitempty,max=30"`
	Address         *string                   `json:"address" validate:"omitempty,max=300"`
	CompanyName     *string                   `json:"company_name" validate:"omitempty,max=120"`
	Availability    *string                   `json:"availability" validate:"omitempty,max=300"`
	Specialties     []marketplace.ServiceType `json:"specialties"`
	ServiceRadiusKm *float64                  `json:"service_radius_km" validate:"omitempty,gte=0,lte=500"`
	Latitude        *float64                  `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64                  `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// Apply copies the set fields of p onto u.
func (p Update) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.CompanyName != nil {
		u.CompanyName = *p.CompanyName
	}
	if p.Availability != nil {
		u.Availability = *p.Availability
	}
	if p.Specialties != nil {
		u.Specialties = append([]marketplace.ServiceType{}, p.Specialties...)
	}
	if p.ServiceRadiusKm != nil {
		u.ServiceRadiusKm = *p.ServiceRadiusKm
	}
	if p.Latitude != nil {
		v := *p.Latitude
		u.Latitude = &v
	}
	if p.Longitude != nil {
		v := *p.Longitude
		u.Longitude = &v
	}
}

type ListFilter struct {
	Role   session.Role
	Limit  int
	Offset int
}

// Store persists accounts. Emails are stored lowercased.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id string, p Update) (*User, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetPassword(ctx context.Context, id, hash string) error
	SetRoleByEmail(ctx context.Context, email string, role session.Role) error
	SetProviderStats(ctx context.Context, providerID string, rating float64, totalServices int) error
	List(ctx context.Context, f ListFilter) ([]User, int, error)
	CountByRole(ctx context.Context) (map[session.Role]int, error)
}
