package store

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

CREATE TABLE IF NOT EXISTS delivered_reminders (
	id           TEXT PRIMARY KEY,
	delivered_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_delivered_reminders_at ON delivered_reminders(delivered_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
