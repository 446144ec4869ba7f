package sqlite

// Schema is applied on every open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	username     TEXT NOT NULL UNIQUE COLLATE NOCASE,
	phone_number TEXT NOT NULL UNIQUE,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE COLLATE NOCASE,
	topic      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS memberships (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         INTEGER NOT NULL REFERENCES users(id),
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	operator        BOOLEAN NOT NULL DEFAULT 0,
	voice           BOOLEAN NOT NULL DEFAULT 0,
	last_active     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_id, conversation_id)
);

CREATE TABLE IF NOT EXISTS invitations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	inviter_id      INTEGER NOT NULL REFERENCES users(id),
	invitee_id      INTEGER NOT NULL REFERENCES users(id),
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (invitee_id, conversation_id)
);

CREATE TABLE IF NOT EXISTS area_codes (
	country_code INTEGER NOT NULL,
	area_code    INTEGER NOT NULL,
	region       TEXT NOT NULL DEFAULT '',
	country      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (country_code, area_code)
);
`
