package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rolo/internal/colorhash"
	"rolo/pkg/rolo"
)

// fakeBook is an in-memory AddressBook that counts lookups and can be gated
// open to hold a fetch in flight.
type fakeBook struct {
	mu    sync.Mutex
	calls int
	cards map[string][]rolo.Card
	err   error
	gate  chan struct{}
}

func (f *fakeBook) QuickSearch(ctx context.Context, email string) ([]rolo.Card, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}

	return f.cards[email], nil
}

func (f *fakeBook) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAccounts is an in-memory AccountDirectory with a list call counter.
type fakeAccounts struct {
	mu       sync.Mutex
	calls    int
	accounts []rolo.Account
	err      error
}

func (f *fakeAccounts) List(_ context.Context) ([]rolo.Account, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	return append([]rolo.Account(nil), f.accounts...), nil
}

func (f *fakeAccounts) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestCache(t *testing.T, book *fakeBook, accounts *fakeAccounts) *Cache {
	t.Helper()

	cache, err := New(book, accounts)
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}

	return cache
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeAccounts{}); err == nil {
		t.Fatal("expected error for nil address book")
	}
	if _, err := New(&fakeBook{}, nil); err == nil {
		t.Fatal("expected error for nil account directory")
	}
}

func TestResolveRejectsEmptyEmail(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, &fakeBook{}, &fakeAccounts{})

	for _, email := range []string{"", "   ", "\t"} {
		if _, err := cache.Resolve(context.Background(), email); !errors.Is(err, rolo.ErrInvalidEmail) {
			t.Fatalf("Resolve(%q) error = %v, want ErrInvalidEmail", email, err)
		}
	}
}

func TestResolveNoMatchFallback(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, &fakeBook{}, &fakeAccounts{})

	record, err := cache.Resolve(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	want := rolo.ContactRecord{Color: colorhash.ColorFor("nobody@example.com")}
	if record != want {
		t.Fatalf("record = %+v, want minimal record %+v", record, want)
	}
}

func TestResolveIsIdempotentAfterFirstFetch(t *testing.T) {
	t.Parallel()

	book := &fakeBook{
		cards: map[string][]rolo.Card{
			"jane@example.com": {{
				ID:           "card-1",
				PrimaryEmail: "jane@example.com",
				FirstName:    "Jane",
				LastName:     "Doe",
			}},
		},
	}
	accounts := &fakeAccounts{}
	cache := newTestCache(t, book, accounts)

	first, err := cache.Resolve(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	second, err := cache.Resolve(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}

	if first != second {
		t.Fatalf("records differ across resolves: %+v vs %+v", first, second)
	}
	if got := book.callCount(); got != 1 {
		t.Fatalf("address book called %d times, want 1", got)
	}
	if got := accounts.callCount(); got != 1 {
		t.Fatalf("account directory called %d times, want 1", got)
	}
	if first.Name != "Jane Doe" {
		t.Fatalf("name = %q, want %q", first.Name, "Jane Doe")
	}
	if first.ContactID != "card-1" {
		t.Fatalf("contact id = %q, want %q", first.ContactID, "card-1")
	}
}

func TestResolveCoalescesConcurrentFetches(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	book := &fakeBook{gate: gate}
	accounts := &fakeAccounts{}
	cache := newTestCache(t, book, accounts)

	const callers = 8
	records := make([]rolo.ContactRecord, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		idx := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			records[idx], errs[idx] = cache.Resolve(context.Background(), "shared@example.com")
		}()
	}

	// Give every caller time to join the in-flight fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for idx := 0; idx < callers; idx++ {
		if errs[idx] != nil {
			t.Fatalf("caller %d failed: %v", idx, errs[idx])
		}
		if records[idx] != records[0] {
			t.Fatalf("caller %d record %+v differs from %+v", idx, records[idx], records[0])
		}
	}
	if got := book.callCount(); got != 1 {
		t.Fatalf("address book called %d times, want 1", got)
	}
	if got := accounts.callCount(); got != 1 {
		t.Fatalf("account directory called %d times, want 1", got)
	}
}

func TestResolveFansOutAliasesWithCanonicalColor(t *testing.T) {
	t.Parallel()

	// The card matched the lookup key "c@x" without carrying it, simulating
	// an alternate lookup key. Only the card's own addresses become cache
	// keys, and the color derives from the primary address.
	book := &fakeBook{
		cards: map[string][]rolo.Card{
			"c@x": {{
				ID:           "card-7",
				PrimaryEmail: "a@x",
				SecondEmail:  "b@x",
			}},
		},
	}
	cache := newTestCache(t, book, &fakeAccounts{})

	record, err := cache.Resolve(context.Background(), "c@x")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if want := colorhash.ColorFor("a@x"); record.Color != want {
		t.Fatalf("color = %q, want canonical color %q", record.Color, want)
	}
	if queryColor := colorhash.ColorFor("c@x"); record.Color == queryColor {
		t.Fatalf("color %q derived from query email, want canonical email", record.Color)
	}

	for _, alias := range []string{"a@x", "b@x"} {
		got, err := cache.Resolve(context.Background(), alias)
		if err != nil {
			t.Fatalf("resolve alias %s failed: %v", alias, err)
		}
		if got != record {
			t.Fatalf("alias %s record %+v, want %+v", alias, got, record)
		}
	}
	if got := book.callCount(); got != 1 {
		t.Fatalf("address book called %d times, want alias hits to stay cached (1)", got)
	}
}

func TestResolveSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	book := &fakeBook{
		cards: map[string][]rolo.Card{
			"jane@example.com": {{
				ID:           "card-1",
				PrimaryEmail: "jane@example.com",
				FirstName:    "Jane",
				LastName:     "Doe",
			}},
		},
	}
	cache := newTestCache(t, book, &fakeAccounts{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The canceled caller still gets the full record: the fetch it triggers
	// is shared, so it must not fail on caller-side cancellation.
	record, err := cache.Resolve(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("resolve with canceled context failed: %v", err)
	}
	if record.ContactID != "card-1" {
		t.Fatalf("record = %+v, want Jane's card despite canceled caller", record)
	}

	// The installed entry is the real record, not a degraded one.
	later, err := cache.Resolve(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("later resolve failed: %v", err)
	}
	if later.Name != "Jane Doe" {
		t.Fatalf("name = %q, want %q from the cached entry", later.Name, "Jane Doe")
	}
	if got := book.callCount(); got != 1 {
		t.Fatalf("address book called %d times, want the first fetch to have cached cleanly", got)
	}
}

func TestResolveSwallowsAddressBookErrors(t *testing.T) {
	t.Parallel()

	book := &fakeBook{err: errors.New("directory offline")}
	cache := newTestCache(t, book, &fakeAccounts{})

	record, err := cache.Resolve(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if record.ContactID != "" || record.Name != "" || record.PhotoURI != "" {
		t.Fatalf("record = %+v, want degraded minimal record", record)
	}
	if want := colorhash.ColorFor("jane@example.com"); record.Color != want {
		t.Fatalf("color = %q, want %q", record.Color, want)
	}
}

func TestResolveNamePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		card rolo.Card
		want string
	}{
		{
			name: "prefer display name wins over structured names",
			card: rolo.Card{
				PrimaryEmail:      "jane@example.com",
				PreferDisplayName: "1",
				DisplayName:       "Jane Doe",
				FirstName:         "Janet",
				LastName:          "Smith",
			},
			want: "Jane Doe",
		},
		{
			name: "flag off composes first and last",
			card: rolo.Card{
				PrimaryEmail:      "jane@example.com",
				PreferDisplayName: "0",
				DisplayName:       "Ignored",
				FirstName:         "Jane",
				LastName:          "Doe",
			},
			want: "Jane Doe",
		},
		{
			name: "first name only has no trailing space",
			card: rolo.Card{
				PrimaryEmail: "jane@example.com",
				FirstName:    "Jane",
			},
			want: "Jane",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			book := &fakeBook{
				cards: map[string][]rolo.Card{
					"jane@example.com": {tc.card},
				},
			}
			cache := newTestCache(t, book, &fakeAccounts{})

			record, err := cache.Resolve(context.Background(), "jane@example.com")
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			if record.Name != tc.want {
				t.Fatalf("name = %q, want %q", record.Name, tc.want)
			}
		})
	}
}

func TestResolveUsesFirstMatchingCard(t *testing.T) {
	t.Parallel()

	book := &fakeBook{
		cards: map[string][]rolo.Card{
			"shared@example.com": {
				{ID: "card-first", PrimaryEmail: "shared@example.com", FirstName: "First"},
				{ID: "card-second", PrimaryEmail: "shared@example.com", FirstName: "Second"},
			},
		},
	}
	cache := newTestCache(t, book, &fakeAccounts{})

	record, err := cache.Resolve(context.Background(), "shared@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if record.ContactID != "card-first" {
		t.Fatalf("contact id = %q, want first returned card", record.ContactID)
	}
}

func TestIdentityIndex(t *testing.T) {
	t.Parallel()

	accounts := &fakeAccounts{
		accounts: []rolo.Account{
			{
				ID:   "acct-mail",
				Type: "imap",
				Identities: []rolo.Identity{
					{ID: "id-1", Email: "jane@example.com"},
				},
			},
			{
				ID:   "acct-news",
				Type: rolo.AccountTypeNNTP,
				Identities: []rolo.Identity{
					{ID: "id-news", Email: "news@example.com"},
				},
			},
		},
	}
	cache := newTestCache(t, &fakeBook{}, accounts)

	record, err := cache.Resolve(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if record.IdentityID != "id-1" {
		t.Fatalf("identity id = %q, want %q", record.IdentityID, "id-1")
	}

	newsRecord, err := cache.Resolve(context.Background(), "news@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if newsRecord.IdentityID != "" {
		t.Fatalf("identity id = %q, want nntp identities skipped", newsRecord.IdentityID)
	}

	if got := accounts.callCount(); got != 1 {
		t.Fatalf("account directory called %d times, want the index built once", got)
	}
}

func TestIdentityIndexDegradesToEmptyOnError(t *testing.T) {
	t.Parallel()

	accounts := &fakeAccounts{err: errors.New("account service down")}
	cache := newTestCache(t, &fakeBook{}, accounts)

	record, err := cache.Resolve(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if record.IdentityID != "" {
		t.Fatalf("identity id = %q, want empty on degraded index", record.IdentityID)
	}

	// The failed build is never retried within the cache lifetime.
	if _, err := cache.Resolve(context.Background(), "other@example.com"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got := accounts.callCount(); got != 1 {
		t.Fatalf("account directory called %d times, want no retry after failure", got)
	}
}
