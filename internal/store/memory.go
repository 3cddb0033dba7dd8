package store

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/domain"
	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"
)

// Memory keeps customers in a map. Every read and write goes through a
// deep copy so callers never share state with the store.
type Memory struct {
	mu        sync.RWMutex
	customers map[string]*odomain.StoredCustomer
	now       func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		customers: make(map[string]*odomain.StoredCustomer),
		now:       time.Now,
	}
}

// Upsert writes c under its lower-cased email. An existing record keeps its
// ID and history. c.LastVisit is stamped.
func (m *Memory) Upsert(_ context.Context, c *odomain.StoredCustomer) error {
	email := normalizeEmail(c.Email)
	if email == "" {
		return &domain.ErrValidation{Field: "email", Message: "required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c.LastVisit = m.now()
	rec := c.Clone()
	rec.Email = email
	rec.ConversationHistory = []odomain.HistoryEntry{}
	if prev, ok := m.customers[email]; ok {
		rec.ID = prev.ID
		rec.ConversationHistory = prev.ConversationHistory
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	m.customers[email] = rec
	return nil
}

// FindByEmail returns the record for email, or (nil, nil).
func (m *Memory) FindByEmail(_ context.Context, email string) (*odomain.StoredCustomer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.customers[normalizeEmail(email)].Clone(), nil
}

// FindByMobile returns the most recently visited record with mobile.
func (m *Memory) FindByMobile(_ context.Context, mobile string) (*odomain.StoredCustomer, error) {
	if mobile == "" {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *odomain.StoredCustomer
	for _, c := range m.customers {
		if c.MobileNumber == mobile && (found == nil || c.LastVisit.After(found.LastVisit)) {
			found = c
		}
	}
	return found.Clone(), nil
}

// AppendHistory adds entry to the customer's history.
func (m *Memory) AppendHistory(_ context.Context, email string, entry odomain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[normalizeEmail(email)]
	if !ok {
		return &domain.ErrNotFound{Resource: "customer", ID: email}
	}
	if entry.Data != nil {
		data := make(map[string]string, len(entry.Data))
		for k, v := range entry.Data {
			data[k] = v
		}
		entry.Data = data
	}
	c.ConversationHistory = append(c.ConversationHistory, entry)
	return nil
}

func (m *Memory) NewID() string { return newID() }

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
