package thread

// Schema is the DDL for the thread tables
const Schema = `
CREATE TABLE IF NOT EXISTS threads (
    id         UUID PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS thread_messages (
    id         UUID PRIMARY KEY,
    thread_id  UUID NOT NULL REFERENCES threads (id) ON DELETE CASCADE,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_thread_messages_thread ON thread_messages (thread_id, created_at DESC);
`
