// Package resolver implements the contact-resolution cache: it maps an email
// address to enriched contact metadata sourced from an address book and an
// account directory, deduplicates concurrent lookups, and invalidates entries
// on address-book change notifications.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"rolo/internal/colorhash"
	"rolo/pkg/rolo"
)

// Cache resolves emails to contact records, remembering every successful
// resolution until an invalidation removes it.
//
// Cache keys are the raw email strings supplied by callers; no case
// normalization is applied, so "A@x" and "a@x" are distinct entries.
type Cache struct {
	logger   *slog.Logger
	book     rolo.AddressBook
	accounts rolo.AccountDirectory

	// group coalesces concurrent fetches per email key: N concurrent Resolve
	// calls for one email perform exactly one pair of collaborator lookups.
	group singleflight.Group

	mu      sync.RWMutex
	records map[string]rolo.ContactRecord

	// identityOnce guards the lazy identity index build. A failed build
	// leaves the index empty for the cache lifetime; it is never retried and
	// never refreshed on account changes.
	identityOnce sync.Once
	identities   map[string]string
}

// New creates a contact cache over the given collaborators.
func New(book rolo.AddressBook, accounts rolo.AccountDirectory, opts ...Option) (*Cache, error) {
	if book == nil {
		return nil, fmt.Errorf("new resolver: nil address book")
	}
	if accounts == nil {
		return nil, fmt.Errorf("new resolver: nil account directory")
	}

	cache := &Cache{
		logger:   slog.Default(),
		book:     book,
		accounts: accounts,
		records:  make(map[string]rolo.ContactRecord),
	}
	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// Resolve returns the contact record for email, fetching from the
// collaborators on a cache miss. Concurrent calls for the same email share a
// single fetch; every caller receives an independent copy of the result.
//
// Collaborator failures never surface: Resolve degrades to a minimal record
// carrying only the deterministic color. The only returned error is
// rolo.ErrInvalidEmail for an empty email.
func (c *Cache) Resolve(ctx context.Context, email string) (rolo.ContactRecord, error) {
	if strings.TrimSpace(email) == "" {
		return rolo.ContactRecord{}, fmt.Errorf("resolve contact: %w", rolo.ErrInvalidEmail)
	}

	c.mu.RLock()
	record, found := c.records[email]
	c.mu.RUnlock()
	if found {
		return record, nil
	}

	// The shared fetch runs detached from the caller's context: the result is
	// installed in the cache for everyone, so one canceled caller must not
	// fail the lookup and poison the entry with a degraded record.
	result, err, _ := c.group.Do(email, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), email), nil
	})
	if err != nil {
		return rolo.ContactRecord{}, fmt.Errorf("resolve contact: %w", err)
	}

	return result.(rolo.ContactRecord), nil
}

// fetch performs the collaborator lookups for one email and installs the
// result under every resolved alias. It always succeeds; lookup failures
// degrade to a no-match record.
//
// Installation happens before the surrounding singleflight call completes, so
// an invalidation racing with an in-flight fetch is overridden by the fetch's
// completion. Callers needing strict post-invalidation freshness resolve
// again.
func (c *Cache) fetch(ctx context.Context, email string) rolo.ContactRecord {
	card, matched := c.lookupCard(ctx, email)

	canonical := email
	aliases := []string{email}
	var record rolo.ContactRecord
	if matched {
		canonical = card.CanonicalEmail(email)
		// A matched card contributes only its own addresses as cache keys.
		// A card without any address therefore caches nowhere and the next
		// resolve for this email fetches again.
		aliases = card.Aliases()
		record.ContactID = card.ID
		record.Name = card.FormatName()
		record.PhotoURI = card.PhotoURI
	}

	record.IdentityID = c.identityIndex(ctx)[canonical]
	record.Color = colorhash.ColorFor(canonical)

	c.mu.Lock()
	for _, alias := range aliases {
		c.records[alias] = record
	}
	c.mu.Unlock()

	return record
}

// lookupCard queries the address book and selects the first matching card.
// Lookup errors are logged and treated as no match.
func (c *Cache) lookupCard(ctx context.Context, email string) (rolo.Card, bool) {
	cards, err := c.book.QuickSearch(ctx, email)
	if err != nil {
		c.logger.Warn("address book lookup failed, treating as no match",
			slog.String("email", email),
			slog.Any("error", err),
		)
		return rolo.Card{}, false
	}
	if len(cards) == 0 {
		return rolo.Card{}, false
	}

	return cards[0], true
}

// identityIndex returns the identity-email index, building it on first use
// from the full account listing. News (nntp) account identities are skipped.
func (c *Cache) identityIndex(ctx context.Context) map[string]string {
	c.identityOnce.Do(func() {
		index := make(map[string]string)
		accounts, err := c.accounts.List(ctx)
		if err != nil {
			c.logger.Warn("account listing failed, identity index stays empty",
				slog.Any("error", err),
			)
			c.identities = index
			return
		}

		for _, account := range accounts {
			if account.Type == rolo.AccountTypeNNTP {
				continue
			}
			for _, identity := range account.Identities {
				if identity.Email == "" {
					continue
				}
				index[identity.Email] = identity.ID
			}
		}
		c.identities = index
	})

	return c.identities
}
