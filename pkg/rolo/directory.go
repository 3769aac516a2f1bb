package rolo

import (
	"context"
	"strconv"
	"strings"
)

// Card is one address-book entry. All fields except ID are optional; absent
// values are empty strings.
type Card struct {
	// ID is the opaque address-book identifier for this card.
	ID string `db:"id" json:"id"`
	// PrimaryEmail is the card's main address and, when present, the canonical
	// email used for color computation.
	PrimaryEmail string `db:"primary_email" json:"primaryEmail,omitempty"`
	// SecondEmail is the card's alternate address.
	SecondEmail string `db:"second_email" json:"secondEmail,omitempty"`
	// DisplayName is the free-form full name of the contact.
	DisplayName string `db:"display_name" json:"displayName,omitempty"`
	// FirstName is the structured given name.
	FirstName string `db:"first_name" json:"firstName,omitempty"`
	// LastName is the structured family name.
	LastName string `db:"last_name" json:"lastName,omitempty"`
	// PhotoURI references the card avatar.
	PhotoURI string `db:"photo_uri" json:"photoURI,omitempty"`
	// PreferDisplayName arrives from legacy address books as the string "0" or
	// "1" (possibly absent). Use PrefersDisplayName for the coerced value.
	PreferDisplayName string `db:"prefer_display_name" json:"preferDisplayName,omitempty"`
}

// PrefersDisplayName coerces the legacy "0"/"1" flag to a boolean. Numeric
// values count as set when non-zero; absent or unparseable values count as
// unset.
func (c Card) PrefersDisplayName() bool {
	raw := strings.TrimSpace(c.PreferDisplayName)
	if raw == "" {
		return false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n != 0
	}
	parsed, err := strconv.ParseBool(raw)
	return err == nil && parsed
}

// FormatName resolves the display name for this card: the display name when
// the prefer flag is set, otherwise "FirstName LastName" composed from
// whichever structured name fields are present, with a separating space only
// when both are.
func (c Card) FormatName() string {
	if c.PrefersDisplayName() {
		return c.DisplayName
	}

	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

// CanonicalEmail returns the email that represents this card for color
// computation: the primary email when present, otherwise the address the card
// was looked up by.
func (c Card) CanonicalEmail(queried string) string {
	if c.PrimaryEmail != "" {
		return c.PrimaryEmail
	}
	return queried
}

// Aliases returns every card address that should map to the same cached
// record.
func (c Card) Aliases() []string {
	aliases := make([]string, 0, 2)
	if c.PrimaryEmail != "" {
		aliases = append(aliases, c.PrimaryEmail)
	}
	if c.SecondEmail != "" {
		aliases = append(aliases, c.SecondEmail)
	}
	return aliases
}

// AddressBook is the asynchronous card lookup collaborator.
//
// Implementations must be concurrency-safe; the resolver can issue lookups for
// distinct emails from multiple goroutines at the same time.
type AddressBook interface {
	// QuickSearch returns every card carrying the given email, in a stable
	// implementation-defined order. The first returned card wins when several
	// match.
	QuickSearch(ctx context.Context, email string) ([]Card, error)
}

// AccountTypeNNTP marks news accounts, whose identities are excluded from the
// identity-email index.
const AccountTypeNNTP = "nntp"

// Identity is one configured account identity used for outgoing mail.
type Identity struct {
	// ID is the opaque identity identifier.
	ID string `json:"id" mapstructure:"id"`
	// Email is the identity's outgoing address.
	Email string `json:"email" mapstructure:"email"`
}

// Account is one configured mail account with its identities.
type Account struct {
	// ID is the opaque account identifier.
	ID string `json:"id" mapstructure:"id"`
	// Type is the account kind, for example "imap" or "nntp".
	Type string `json:"type" mapstructure:"type"`
	// Identities lists the identities configured for this account.
	Identities []Identity `json:"identities" mapstructure:"identities"`
}

// AccountDirectory is the asynchronous account listing collaborator.
type AccountDirectory interface {
	// List returns every configured account. Callers own the returned slice.
	List(ctx context.Context) ([]Account, error)
}
