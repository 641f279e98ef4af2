package mathcache

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS mathml (
  hash TEXT PRIMARY KEY,
  latex TEXT NOT NULL,
  payload BLOB NOT NULL,
  unused INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS mathml (
  hash TEXT PRIMARY KEY,
  latex TEXT NOT NULL,
  payload BYTEA NOT NULL,
  unused INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);
`
