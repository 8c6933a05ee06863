package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	authKey    = "auth_token"
	profileKey = "user_profile"
)

// ErrInvalidCredentials is returned when a login does not match the demo account.
var ErrInvalidCredentials = errors.New("invalid credentials")

// KV is the persistence backend for application state.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Credentials is the single demo account accepted by Login.
type Credentials struct {
	Email    string
	Password string
}

// DefaultCredentials returns the built-in demo account.
func DefaultCredentials() Credentials {
	return Credentials{Email: "user@tenantguardian.ai", Password: "password"}
}

// Profile is the tenant's profile record. It is always read and written whole.
type Profile struct {
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	Occupation     string `json:"occupation"`
	Employer       string `json:"employer"`
	Income         string `json:"income"`
	EmergencyName  string `json:"emergencyName"`
	EmergencyPhone string `json:"emergencyPhone"`
	Bio            string `json:"bio"`
}

// DefaultProfile is shown until the user saves their own.
func DefaultProfile() Profile {
	return Profile{FullName: "Tenant User", Email: "user@tenantguardian.ai"}
}

// Completion returns the share of filled-in fields as a percentage.
func (p Profile) Completion() int {
	fields := []string{
		p.FullName, p.Email, p.Phone, p.Address, p.Occupation,
		p.Employer, p.Income, p.EmergencyName, p.EmergencyPhone, p.Bio,
	}
	filled := 0
	for _, field := range fields {
		if strings.TrimSpace(field) != "" {
			filled++
		}
	}
	return int(math.Round(float64(filled) * 100 / float64(len(fields))))
}

// Store holds the auth flag and profile in memory, loaded once from the backend
// and written back wholesale on each explicit action.
type Store struct {
	kv          KV
	credentials Credentials

	mu            sync.RWMutex
	authenticated bool
	profile       Profile
}

// Load reads the persisted state. A missing or unreadable profile yields the default.
func Load(ctx context.Context, kv KV, credentials Credentials) (*Store, error) {
	if kv == nil {
		return nil, errors.New("state backend is nil")
	}
	s := &Store{kv: kv, credentials: credentials, profile: DefaultProfile()}

	flag, ok, err := kv.Get(ctx, authKey)
	if err != nil {
		return nil, fmt.Errorf("load auth flag: %w", err)
	}
	s.authenticated = ok && flag == "true"

	raw, ok, err := kv.Get(ctx, profileKey)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if ok {
		var profile Profile
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			logrus.WithError(err).Warn("stored profile unreadable; using default")
		} else {
			s.profile = profile
		}
	}
	return s, nil
}

// Authenticated reports the current auth flag.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Profile returns the current profile.
func (s *Store) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Login checks the demo credentials and sets the auth flag.
func (s *Store) Login(ctx context.Context, email, password string) error {
	if !strings.EqualFold(strings.TrimSpace(email), s.credentials.Email) || password != s.credentials.Password {
		return ErrInvalidCredentials
	}
	return s.setAuthenticated(ctx, true)
}

// LoginAs stores the given profile and sets the auth flag, as a social sign-in does.
func (s *Store) LoginAs(ctx context.Context, profile Profile) error {
	if err := s.SaveProfile(ctx, profile); err != nil {
		return err
	}
	return s.setAuthenticated(ctx, true)
}

// Signup creates a profile for the new account and signs it in.
func (s *Store) Signup(ctx context.Context, name, email string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return errors.New("name and email are required")
	}
	return s.LoginAs(ctx, Profile{FullName: name, Email: email})
}

// Logout clears the auth flag. The profile is kept.
func (s *Store) Logout(ctx context.Context) error {
	return s.setAuthenticated(ctx, false)
}

// SaveProfile replaces the stored profile.
func (s *Store) SaveProfile(ctx context.Context, profile Profile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, profileKey, string(payload)); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.profile = profile
	return nil
}

func (s *Store) setAuthenticated(ctx context.Context, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if value {
		err = s.kv.Set(ctx, authKey, "true")
	} else {
		err = s.kv.Delete(ctx, authKey)
	}
	if err != nil {
		return fmt.Errorf("save auth flag: %w", err)
	}
	s.authenticated = value
	return nil
}
