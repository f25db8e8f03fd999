package storage

const schema = `
-- Every logical collection (sessions, card state, deck stats, source config)
-- is stored as one JSON document under a well-known key.
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);
`

// Keys of the persisted documents.
const (
	KeySessions  = "leitner_sessions_list"
	KeyConfig    = "leitner_config"
	KeyCardState = "leitner_card_state"
	KeyDeckStats = "leitner_deck_stats"
)
