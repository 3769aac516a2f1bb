package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"rolo/internal/notify"
	"rolo/pkg/rolo"
)

func TestHandleChangeRejectsInvalidEvents(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, &fakeBook{}, &fakeAccounts{})

	err := cache.HandleChange(context.Background(), rolo.ChangeEvent{Kind: "unknown"})
	if !errors.Is(err, rolo.ErrInvalidEvent) {
		t.Fatalf("error = %v, want ErrInvalidEvent", err)
	}
}

func TestUpdateInvalidatesCachedEmails(t *testing.T) {
	t.Parallel()

	book := &fakeBook{
		cards: map[string][]rolo.Card{
			"jane@example.com": {{
				ID:           "card-1",
				PrimaryEmail: "jane@example.com",
				SecondEmail:  "jd@example.com",
				FirstName:    "Jane",
			}},
		},
	}
	cache := newTestCache(t, book, &fakeAccounts{})

	if _, err := cache.Resolve(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got := book.callCount(); got != 1 {
		t.Fatalf("address book called %d times, want 1", got)
	}

	err := cache.HandleChange(context.Background(), rolo.ChangeEvent{
		Kind:         rolo.ChangeContactUpdated,
		ContactID:    "card-1",
		PrimaryEmail: "jane@example.com",
		SecondEmail:  "jd@example.com",
	})
	if err != nil {
		t.Fatalf("handle change failed: %v", err)
	}

	if _, err := cache.Resolve(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("resolve after invalidation failed: %v", err)
	}
	if got := book.callCount(); got != 2 {
		t.Fatalf("address book called %d times, want re-fetch after invalidation", got)
	}
}

func TestDeleteInvalidatesEveryAliasOfTheContact(t *testing.T) {
	t.Parallel()

	book := &fakeBook{
		cards: map[string][]rolo.Card{
			"a@x": {{
				ID:           "card-7",
				PrimaryEmail: "a@x",
				SecondEmail:  "b@x",
			}},
		},
	}
	cache := newTestCache(t, book, &fakeAccounts{})

	if _, err := cache.Resolve(context.Background(), "a@x"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	err := cache.HandleChange(context.Background(), rolo.ChangeEvent{
		Kind:        rolo.ChangeContactDeleted,
		ContactID:   "card-7",
		DirectoryID: "personal",
	})
	if err != nil {
		t.Fatalf("handle change failed: %v", err)
	}

	// Both aliases were dropped, so either lookup fetches again.
	if _, err := cache.Resolve(context.Background(), "b@x"); err != nil {
		t.Fatalf("resolve after delete failed: %v", err)
	}
	if got := book.callCount(); got != 2 {
		t.Fatalf("address book called %d times, want re-fetch after delete", got)
	}
}

func TestInvalidateEmailsIgnoresEmptyAndUnknownKeys(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, &fakeBook{}, &fakeAccounts{})

	// Must not panic or create entries.
	cache.InvalidateEmails("", "unknown@example.com")
	cache.InvalidateContact("")
}

func TestCacheSubscribedToBusInvalidatesOnPublish(t *testing.T) {
	t.Parallel()

	book := &fakeBook{
		cards: map[string][]rolo.Card{
			"jane@example.com": {{
				ID:           "card-1",
				PrimaryEmail: "jane@example.com",
			}},
		},
	}
	cache := newTestCache(t, book, &fakeAccounts{})

	bus := notify.NewBus(8, 1, time.Second, nil)
	defer func() {
		if err := bus.Close(context.Background()); err != nil {
			t.Fatalf("close bus failed: %v", err)
		}
	}()

	sub, err := bus.Subscribe(context.Background(), notify.SubscriptionSpec{
		Name:         "contact-cache",
		Backpressure: notify.Block,
	}, cache.HandleChange)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer func() {
		if err := sub.Close(context.Background()); err != nil {
			t.Fatalf("close subscription failed: %v", err)
		}
	}()

	if _, err := cache.Resolve(context.Background(), "jane@example.com"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	err = bus.Publish(context.Background(), rolo.ChangeEvent{
		Kind:         rolo.ChangeContactUpdated,
		ContactID:    "card-1",
		PrimaryEmail: "jane@example.com",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// Delivery is asynchronous; wait for the invalidation to land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := cache.Resolve(context.Background(), "jane@example.com"); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if book.callCount() >= 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("address book called %d times, want re-fetch after published invalidation", book.callCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
