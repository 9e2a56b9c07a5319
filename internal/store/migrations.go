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

CREATE TABLE IF NOT EXISTS starred (
	email_id   TEXT PRIMARY KEY,
	starred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	},
}
