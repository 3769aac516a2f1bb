package addrbook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rolo/pkg/rolo"
)

// cardRow is the persisted card shape: the wire card plus bookkeeping times.
type cardRow struct {
	rolo.Card
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// QuickSearch returns every card carrying email as its primary or secondary
// address, ordered by creation time with the id as tie-break, so "first match
// wins" consumers see a stable ordering. Implements rolo.AddressBook.
func (s *Store) QuickSearch(ctx context.Context, email string) ([]rolo.Card, error) {
	if email == "" {
		return nil, fmt.Errorf("quick search: %w", rolo.ErrInvalidEmail)
	}

	var rows []cardRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, primary_email, second_email, display_name, first_name,
		       last_name, photo_uri, prefer_display_name, created_at, updated_at
		FROM cards
		WHERE primary_email = ? OR second_email = ?
		ORDER BY created_at, id`,
		email, email,
	)
	if err != nil {
		return nil, fmt.Errorf("quick search %s: %w", email, err)
	}

	cards := make([]rolo.Card, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, row.Card)
	}

	return cards, nil
}

// GetCard returns one card by id.
func (s *Store) GetCard(ctx context.Context, id string) (rolo.Card, error) {
	var row cardRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, primary_email, second_email, display_name, first_name,
		       last_name, photo_uri, prefer_display_name, created_at, updated_at
		FROM cards WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return rolo.Card{}, fmt.Errorf("get card %s: %w", id, rolo.ErrCardNotFound)
	}
	if err != nil {
		return rolo.Card{}, fmt.Errorf("get card %s: %w", id, err)
	}

	return row.Card, nil
}

// ListCards returns every card ordered by insertion.
func (s *Store) ListCards(ctx context.Context) ([]rolo.Card, error) {
	var rows []cardRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, primary_email, second_email, display_name, first_name,
		       last_name, photo_uri, prefer_display_name, created_at, updated_at
		FROM cards ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	cards := make([]rolo.Card, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, row.Card)
	}

	return cards, nil
}

// CreateCard inserts a new card, generating a UUID when the id is empty, and
// publishes a contact-created event.
func (s *Store) CreateCard(ctx context.Context, card rolo.Card) (rolo.Card, error) {
	if card.PrimaryEmail == "" && card.SecondEmail == "" {
		return rolo.Card{}, fmt.Errorf("create card: card needs at least one email: %w", rolo.ErrInvalidEmail)
	}
	if card.ID == "" {
		card.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (
			id, primary_email, second_email, display_name, first_name,
			last_name, photo_uri, prefer_display_name, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.PrimaryEmail, card.SecondEmail, card.DisplayName, card.FirstName,
		card.LastName, card.PhotoURI, card.PreferDisplayName, now, now,
	)
	if err != nil {
		return rolo.Card{}, fmt.Errorf("create card: %w", err)
	}

	s.publishChange(ctx, rolo.ChangeEvent{
		Kind:         rolo.ChangeContactCreated,
		ContactID:    card.ID,
		DirectoryID:  s.directoryID,
		PrimaryEmail: card.PrimaryEmail,
		SecondEmail:  card.SecondEmail,
	})

	return card, nil
}

// UpdateCard replaces an existing card by id and publishes a contact-updated
// event carrying the card's current email fields.
func (s *Store) UpdateCard(ctx context.Context, card rolo.Card) (rolo.Card, error) {
	if card.ID == "" {
		return rolo.Card{}, fmt.Errorf("update card: empty id: %w", rolo.ErrCardNotFound)
	}
	// An addressless card would produce a contact_updated event with no email
	// to invalidate, so the old cache keys could never be dropped.
	if card.PrimaryEmail == "" && card.SecondEmail == "" {
		return rolo.Card{}, fmt.Errorf("update card %s: card needs at least one email: %w", card.ID, rolo.ErrInvalidEmail)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards SET
			primary_email = ?, second_email = ?, display_name = ?, first_name = ?,
			last_name = ?, photo_uri = ?, prefer_display_name = ?, updated_at = ?
		WHERE id = ?`,
		card.PrimaryEmail, card.SecondEmail, card.DisplayName, card.FirstName,
		card.LastName, card.PhotoURI, card.PreferDisplayName, now, card.ID,
	)
	if err != nil {
		return rolo.Card{}, fmt.Errorf("update card %s: %w", card.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return rolo.Card{}, fmt.Errorf("update card %s: %w", card.ID, err)
	}
	if affected == 0 {
		return rolo.Card{}, fmt.Errorf("update card %s: %w", card.ID, rolo.ErrCardNotFound)
	}

	s.publishChange(ctx, rolo.ChangeEvent{
		Kind:         rolo.ChangeContactUpdated,
		ContactID:    card.ID,
		DirectoryID:  s.directoryID,
		PrimaryEmail: card.PrimaryEmail,
		SecondEmail:  card.SecondEmail,
	})

	return card, nil
}

// DeleteCard removes a card by id and publishes a contact-deleted event.
// The event carries only identifiers because the card's addresses are gone.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete card: empty id: %w", rolo.ErrCardNotFound)
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete card %s: %w", id, rolo.ErrCardNotFound)
	}

	s.publishChange(ctx, rolo.ChangeEvent{
		Kind:        rolo.ChangeContactDeleted,
		ContactID:   id,
		DirectoryID: s.directoryID,
	})

	return nil
}

// hasEmail reports whether any card already carries email as its primary or
// secondary address.
func (s *Store) hasEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM cards WHERE primary_email = ? OR second_email = ?",
		email, email,
	)
	if err != nil {
		return false, fmt.Errorf("check email %s: %w", email, err)
	}

	return count > 0, nil
}

// splitDisplayName derives structured first/last names from a free-form
// display name: the first word becomes the given name, the remainder the
// family name.
func splitDisplayName(displayName string) (first, last string) {
	fields := strings.Fields(displayName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
