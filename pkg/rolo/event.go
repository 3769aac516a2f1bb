package rolo

import "fmt"

// ChangeKind identifies one address-book change notification kind.
type ChangeKind string

const (
	// ChangeContactCreated signals that a card was added to an address book.
	ChangeContactCreated ChangeKind = "contact_created"
	// ChangeContactUpdated signals that an existing card was modified.
	ChangeContactUpdated ChangeKind = "contact_updated"
	// ChangeContactDeleted signals that a card was removed.
	ChangeContactDeleted ChangeKind = "contact_deleted"
)

// ChangeEvent is one asynchronous address-book change notification.
//
// Created and updated events carry the affected card's email fields so caches
// can drop the matching keys. Deleted events carry only the card and directory
// identifiers because the card's addresses are no longer available.
type ChangeEvent struct {
	// Kind identifies the change notification kind.
	Kind ChangeKind
	// ContactID identifies the affected card.
	ContactID string
	// DirectoryID identifies the address book containing the card.
	DirectoryID string
	// PrimaryEmail is the card's main address at change time. Empty for
	// deleted events.
	PrimaryEmail string
	// SecondEmail is the card's alternate address at change time. Empty for
	// deleted events.
	SecondEmail string
}

// Validate checks that the event satisfies its kind's invariants.
func (e ChangeEvent) Validate() error {
	switch e.Kind {
	case ChangeContactCreated, ChangeContactUpdated:
		if e.PrimaryEmail == "" && e.SecondEmail == "" {
			return fmt.Errorf("validate %s event: %w", e.Kind, ErrInvalidEvent)
		}
	case ChangeContactDeleted:
		if e.ContactID == "" {
			return fmt.Errorf("validate %s event: %w", e.Kind, ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("validate event: unknown kind %q: %w", e.Kind, ErrInvalidEvent)
	}

	return nil
}
