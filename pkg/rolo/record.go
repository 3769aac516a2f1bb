// Package rolo defines the neutral contracts shared by the contact-resolution
// cache and its collaborators: the cached record shape, the address-book and
// account-directory lookup interfaces, and the change-notification events that
// drive cache invalidation.
package rolo

// ContactRecord is the enriched metadata resolved for one email address.
//
// Records are value types: every field is a plain string and absent values are
// empty strings, so a struct copy is a complete defensive copy. Consumers
// always receive copies, never a reference into cache state.
type ContactRecord struct {
	// Color is a CSS-compatible color string derived deterministically from
	// the canonical email the record was resolved for.
	Color string `json:"color"`
	// ContactID identifies the matched address-book card, empty when no card
	// matched.
	ContactID string `json:"contactId,omitempty"`
	// IdentityID identifies the matching configured account identity, empty
	// when none matched.
	IdentityID string `json:"identityId,omitempty"`
	// Name is the display name resolved by the card naming policy, empty when
	// no card matched.
	Name string `json:"name,omitempty"`
	// PhotoURI references the card avatar, empty when the card has none.
	PhotoURI string `json:"photoURI,omitempty"`
}
