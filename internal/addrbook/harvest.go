package addrbook

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/emersion/go-message/mail"

	"rolo/pkg/rolo"
)

// harvestHeaders are the message headers mined for contact addresses.
var harvestHeaders = []string{"From", "To", "Cc", "Reply-To"}

// HarvestMessage parses one RFC 5322 message and creates a card for every
// sender or recipient address not already present in the address book. It
// returns the cards it created.
//
// Unparseable header fields are skipped, not fatal: harvesting is a
// best-effort enrichment, and one malformed address list should not discard
// the rest of the message.
func (s *Store) HarvestMessage(ctx context.Context, message io.Reader) ([]rolo.Card, error) {
	reader, err := mail.CreateReader(message)
	if err != nil {
		return nil, fmt.Errorf("harvest message: %w", err)
	}

	seen := make(map[string]bool)
	created := make([]rolo.Card, 0)
	for _, header := range harvestHeaders {
		addresses, err := reader.Header.AddressList(header)
		if err != nil {
			s.logger.Debug("skipping unparseable address header",
				slog.String("header", header),
				slog.Any("error", err),
			)
			continue
		}

		for _, address := range addresses {
			if address.Address == "" || seen[address.Address] {
				continue
			}
			seen[address.Address] = true

			known, err := s.hasEmail(ctx, address.Address)
			if err != nil {
				return created, fmt.Errorf("harvest message: %w", err)
			}
			if known {
				continue
			}

			first, last := splitDisplayName(address.Name)
			card, err := s.CreateCard(ctx, rolo.Card{
				PrimaryEmail: address.Address,
				DisplayName:  address.Name,
				FirstName:    first,
				LastName:     last,
			})
			if err != nil {
				return created, fmt.Errorf("harvest message: %w", err)
			}
			created = append(created, card)
		}
	}

	return created, nil
}
