package addrbook

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cards (
	id                  TEXT PRIMARY KEY,
	primary_email       TEXT NOT NULL DEFAULT '',
	second_email        TEXT NOT NULL DEFAULT '',
	display_name        TEXT NOT NULL DEFAULT '',
	first_name          TEXT NOT NULL DEFAULT '',
	last_name           TEXT NOT NULL DEFAULT '',
	photo_uri           TEXT NOT NULL DEFAULT '',
	prefer_display_name TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_primary_email ON cards(primary_email);
CREATE INDEX IF NOT EXISTS idx_cards_second_email ON cards(second_email);
`,
	},
}
