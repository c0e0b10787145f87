// Package session manages the persisted authentication session. The session
// lifecycle is explicit: Save at login, Load at app start, Clear at logout.
// Every consumer receives the provider by injection rather than reading
// device storage directly.
package session

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/store"
)

// Provider persists and retrieves the auth session through device storage.
type Provider struct {
	store *store.Store
}

// New creates a session provider backed by the given store.
func New(s *store.Store) *Provider {
	return &Provider{store: s}
}

// Save persists the token and user profile together. A session is never
// stored partially: both fields are required and written as one record.
func (p *Provider) Save(token string, user models.User) error {
	if token == "" {
		return fmt.Errorf("session: save: token is required")
	}
	if user.ID == "" {
		return fmt.Errorf("session: save: user is required")
	}

	data, err := json.Marshal(models.Session{Token: token, User: user})
	if err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	if err := p.store.Put(store.KeySession, data); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Load returns the stored session. A missing or corrupt record is reported
// as absent, never as an error: the caller falls back to the login flow.
func (p *Provider) Load() (models.Session, bool) {
	data, err := p.store.Get(store.KeySession)
	if err != nil {
		return models.Session{}, false
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		log.Printf("session: discarding corrupt session record: %v", err)
		return models.Session{}, false
	}
	if sess.Token == "" || sess.User.ID == "" {
		return models.Session{}, false
	}
	return sess, true
}

// Clear removes the stored session. Idempotent.
func (p *Provider) Clear() error {
	if err := p.store.Delete(store.KeySession); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}
