package workflow

// Schema is the DDL for the workflow tables. Applied by the operator or a
// deployment script; the engine only assumes the tables exist.
const Schema = `
CREATE TABLE IF NOT EXISTS workflows (
    id              UUID PRIMARY KEY,
    thread_id       UUID NOT NULL,
    template_id     TEXT NOT NULL,
    status          TEXT NOT NULL,
    current_step_id UUID,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_workflows_thread ON workflows (thread_id, created_at DESC);

CREATE TABLE IF NOT EXISTS workflow_steps (
    id           UUID PRIMARY KEY,
    workflow_id  UUID NOT NULL REFERENCES workflows (id) ON DELETE CASCADE,
    type         TEXT NOT NULL,
    name         TEXT NOT NULL,
    status       TEXT NOT NULL,
    step_order   INT NOT NULL,
    dependencies TEXT[] NOT NULL DEFAULT '{}',
    prompt       TEXT NOT NULL DEFAULT '',
    metadata     JSONB,
    user_input   TEXT NOT NULL DEFAULT '',
    ai_response  TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (workflow_id, step_order)
);

CREATE INDEX IF NOT EXISTS idx_workflow_steps_workflow ON workflow_steps (workflow_id, step_order);
`
