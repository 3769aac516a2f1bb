package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"rolo/pkg/rolo"
)

// HandleChange applies one address-book change notification to the cache.
// It performs synchronous map edits only and matches the notify.Handler
// signature so owners can subscribe it directly to a change bus.
func (c *Cache) HandleChange(_ context.Context, event rolo.ChangeEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("handle change: %w", err)
	}

	switch event.Kind {
	case rolo.ChangeContactCreated, rolo.ChangeContactUpdated:
		c.InvalidateEmails(event.PrimaryEmail, event.SecondEmail)
	case rolo.ChangeContactDeleted:
		c.InvalidateContact(event.ContactID)
	}

	return nil
}

// InvalidateEmails drops the cache entries stored under the given email keys,
// forcing the next Resolve for each to fetch again. Empty emails are skipped.
func (c *Cache) InvalidateEmails(emails ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, email := range emails {
		if email == "" {
			continue
		}
		if _, found := c.records[email]; found {
			delete(c.records, email)
			c.logger.Debug("invalidated cached contact", slog.String("email", email))
		}
	}
}

// InvalidateContact drops every cache entry whose record belongs to the given
// card, regardless of which alias it is stored under.
func (c *Cache) InvalidateContact(contactID string) {
	if contactID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for email, record := range c.records {
		if record.ContactID == contactID {
			delete(c.records, email)
			c.logger.Debug("invalidated cached contact",
				slog.String("email", email),
				slog.String("contact_id", contactID),
			)
		}
	}
}
