package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
)

// Persisted session keys.
const (
	KeyToken            = "token"
	KeyRoles            = "roles"
	KeyUserDetails      = "userDetails"
	KeySidebarCollapsed = "sidebarCollapsed"
)

// Storage is the persistence medium behind a Store. *shared.Session satisfies
// it; MemoryStorage is handy in tests.
type Storage interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// batchStorage writes several keys in one step.
type batchStorage interface {
	SetValues(values map[string]string)
}

// Store is the auth session store: the only owner of the principal's
// persisted state.
type Store struct {
	storage Storage
	now     func() time.Time
}

// NewStore wraps storage.
func NewStore(storage Storage) *Store {
	return &Store{storage: storage, now: time.Now}
}

// FromRequest returns the store of the request session, or nil when the
// request carries no session.
func FromRequest(r *http.Request) *Store {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil
	}
	return NewStore(sess)
}

// Resolver adapts FromRequest to the route guard.
func Resolver(r *http.Request) rbac.SessionReader {
	if st := FromRequest(r); st != nil {
		return st
	}
	return nil
}

// IsAuthenticated reports whether a usable token is stored. Tokens that are
// JWTs with an expiry in the past are treated as absent.
func (s *Store) IsAuthenticated() bool {
	token := s.Token()
	if token == "" {
		return false
	}
	if exp, ok := tokenExpiry(token); ok && !s.now().Before(exp) {
		return false
	}
	return true
}

// Token returns the bearer token, if any.
func (s *Store) Token() string {
	return s.storage.Get(KeyToken)
}

// ExpiresAt returns the token expiry when the token declares one.
func (s *Store) ExpiresAt() (time.Time, bool) {
	return tokenExpiry(s.Token())
}

// Roles returns the stored roles, normalised and deduplicated.
func (s *Store) Roles() []rbac.Role {
	raw := s.storage.Get(KeyRoles)
	if raw == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil
	}
	return rbac.ParseRoles(names)
}

// UserDetails returns the stored profile records.
func (s *Store) UserDetails() []UserDetails {
	raw := s.storage.Get(KeyUserDetails)
	if raw == "" {
		return nil
	}
	var details []UserDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil
	}
	return details
}

// Profile returns the active profile, the first stored record.
func (s *Store) Profile() (UserDetails, bool) {
	details := s.UserDetails()
	if len(details) == 0 {
		return UserDetails{}, false
	}
	return details[0], true
}

// Principal assembles the stored principal.
func (s *Store) Principal() Principal {
	return Principal{Token: s.Token(), Roles: s.Roles(), UserDetails: s.UserDetails()}
}

// DisplayName returns the name of the active profile.
func (s *Store) DisplayName() string {
	return s.Principal().DisplayName()
}

// SidebarCollapsed returns the sidebar preference.
func (s *Store) SidebarCollapsed() bool {
	v, _ := strconv.ParseBool(s.storage.Get(KeySidebarCollapsed))
	return v
}

// SetSidebarCollapsed stores the sidebar preference.
func (s *Store) SetSidebarCollapsed(collapsed bool) {
	s.storage.Set(KeySidebarCollapsed, strconv.FormatBool(collapsed))
}

// Save persists p. Token, roles and details become visible together.
func (s *Store) Save(p Principal) error {
	names := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		names = append(names, r.String())
	}
	roles, err := json.Marshal(names)
	if err != nil {
		return err
	}
	details := p.UserDetails
	if details == nil {
		details = []UserDetails{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	if batch, ok := s.storage.(batchStorage); ok {
		batch.SetValues(map[string]string{
			KeyToken:       p.Token,
			KeyRoles:       string(roles),
			KeyUserDetails: string(detailsJSON),
		})
		return nil
	}
	// Without batch writes the token goes last so it never appears without roles.
	s.storage.Set(KeyRoles, string(roles))
	s.storage.Set(KeyUserDetails, string(detailsJSON))
	s.storage.Set(KeyToken, p.Token)
	return nil
}

// Clear removes the principal. The sidebar preference survives.
func (s *Store) Clear() {
	s.storage.Delete(KeyToken)
	s.storage.Delete(KeyRoles)
	s.storage.Delete(KeyUserDetails)
}

func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// MemoryStorage is a map-backed Storage.
type MemoryStorage map[string]string

// Get implements Storage.
func (m MemoryStorage) Get(key string) string { return m[key] }

// Set implements Storage.
func (m MemoryStorage) Set(key, value string) { m[key] = value }

// Delete implements Storage.
func (m MemoryStorage) Delete(key string) { delete(m, key) }
