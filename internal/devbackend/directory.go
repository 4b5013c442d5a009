// Package devbackend is an in-memory stand-in for the clinic REST backend.
// It speaks the same login, registration, who-am-I and resource routes the
// portal consumes so the portal can run locally and in tests.
package devbackend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/medclinic/booking-portal/internal/core/domain"
)

// Account is a registered backend user.
type Account struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	Role         domain.Role
	CreatedAt    time.Time
}

// User returns the descriptor the portal sees.
func (a Account) User() domain.User {
	return domain.User{ID: a.ID, Role: a.Role}
}

// Seed describes an account created at startup.
type Seed struct {
	Email    string
	Password string
	FullName string
	Role     domain.Role
}

// DefaultSeeds is one account per role.
var DefaultSeeds = []Seed{
	{Email: "patient@clinic.test", Password: "patient123", FullName: "Pat Patient", Role: domain.RolePatient},
	{Email: "doctor@clinic.test", Password: "doctor123", FullName: "Dana Doctor", Role: domain.RoleDoctor},
	{Email: "admin@clinic.test", Password: "admin123", FullName: "Alex Admin", Role: domain.RoleAdmin},
}

// Directory stores accounts by email.
type Directory struct {
	mu     sync.RWMutex
	byMail map[string]*Account
	byID   map[int64]*Account
	nextID int64
	cost   int
}

// NewDirectory returns an empty directory hashing with the given bcrypt
// cost. A cost of zero uses bcrypt.DefaultCost.
func NewDirectory(cost int) *Directory {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Directory{
		byMail: make(map[string]*Account),
		byID:   make(map[int64]*Account),
		cost:   cost,
	}
}

// Register creates an account. Self-registration callers pass RolePatient.
func (d *Directory) Register(_ context.Context, email, password, fullName string, role domain.Role) (Account, error) {
	email = normaliseEmail(email)
	if email == "" || password == "" || !role.Valid() {
		return Account{}, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return Account{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byMail[email]; exists {
		return Account{}, domain.ErrUserExists
	}
	d.nextID++
	acc := &Account{
		ID:           d.nextID,
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	d.byMail[email] = acc
	d.byID[acc.ID] = acc
	return *acc, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords are
// both reported as domain.ErrInvalidCredentials.
func (d *Directory) Authenticate(_ context.Context, email, password string) (Account, error) {
	d.mu.RLock()
	acc, ok := d.byMail[normaliseEmail(email)]
	d.mu.RUnlock()
	if !ok {
		return Account{}, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return Account{}, domain.ErrInvalidCredentials
	}
	return *acc, nil
}

// Lookup finds an account by id.
func (d *Directory) Lookup(id int64) (Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byID[id]
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

// Accounts returns every account ordered by id.
func (d *Directory) Accounts() []Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Account, 0, len(d.byID))
	for id := int64(1); id <= d.nextID; id++ {
		if acc, ok := d.byID[id]; ok {
			out = append(out, *acc)
		}
	}
	return out
}

// Seed registers every seed, skipping those already present.
func (d *Directory) Seed(ctx context.Context, seeds []Seed) error {
	for _, s := range seeds {
		if _, err := d.Register(ctx, s.Email, s.Password, s.FullName, s.Role); err != nil && !errors.Is(err, domain.ErrUserExists) {
			return err
		}
	}
	return nil
}

func normaliseEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
