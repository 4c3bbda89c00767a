package models

import (
	"errors"
	"time"
)

// ClientStatus is the lifecycle state of a hotel client.
type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientPaused   ClientStatus = "paused"
	ClientArchived ClientStatus = "archived"
)

// Client is one hotel account the agency reports on. Platform account
// references are optional: a client may run on only one platform.
type Client struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Status           ClientStatus `json:"status"`
	MetaAccountID    string       `json:"meta_account_id,omitempty"`
	GoogleCustomerID string       `json:"google_customer_id,omitempty"`
	Currency         string       `json:"currency,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Validate checks required client fields.
func (c *Client) Validate() error {
	if c.ID == "" {
		return errors.New("client id is required")
	}
	if c.Name == "" {
		return errors.New("client name is required")
	}
	if c.MetaAccountID == "" && c.GoogleCustomerID == "" {
		return errors.New("client needs at least one platform account")
	}
	return nil
}

// AccountFor returns the platform-specific account reference, or "" when the
// client does not run on that platform.
func (c *Client) AccountFor(p Platform) string {
	switch p {
	case PlatformMeta:
		return c.MetaAccountID
	case PlatformGoogle:
		return c.GoogleCustomerID
	}
	return ""
}
