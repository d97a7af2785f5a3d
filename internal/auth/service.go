package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
)

// ErrUILoginNotPermitted is returned when none of the principal's roles may
// use the web front end.
var ErrUILoginNotPermitted = errors.New("auth: role cannot sign in to the web interface")

// Gateway is the slice of the backend the auth flow needs.
type Gateway interface {
	Login(ctx context.Context, creds backend.Credentials) (backend.LoginResult, error)
	AdminLogout(ctx context.Context, token string) error
}

// Service wraps authentication business rules.
type Service struct {
	gateway Gateway
}

// NewService constructs a new Service.
func NewService(gateway Gateway) *Service {
	return &Service{gateway: gateway}
}

// Authenticate exchanges credentials for a principal. Rejected credentials
// surface as shared.ErrInvalidCredentials; other backend failures are
// returned unchanged for the error facade.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Principal, error) {
	res, err := s.gateway.Login(ctx, backend.Credentials{Username: username, Password: password})
	if err != nil {
		if backend.IsStatus(err, http.StatusUnauthorized) || backend.IsStatus(err, http.StatusBadRequest) {
			return Principal{}, shared.ErrInvalidCredentials
		}
		return Principal{}, err
	}
	if res.Token == "" {
		return Principal{}, shared.ErrInvalidCredentials
	}
	p := Principal{Token: res.Token, Roles: rbac.ParseRoles(res.Roles), UserDetails: res.UserDetails}
	if !p.CanUseUI() {
		return Principal{}, ErrUILoginNotPermitted
	}
	return p, nil
}

// Logout ends the backend session for principals that hold one there.
func (s *Service) Logout(ctx context.Context, p Principal) error {
	if p.Token == "" || !holdsAdministrativeRole(p.Roles) {
		return nil
	}
	return s.gateway.AdminLogout(ctx, p.Token)
}

func holdsAdministrativeRole(roles []rbac.Role) bool {
	for _, r := range roles {
		if rbac.HasAdministrativePrivileges(r) {
			return true
		}
	}
	return false
}
