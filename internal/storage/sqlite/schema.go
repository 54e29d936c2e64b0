package sqlite

const schema = `
-- Builds table (one row per ingested host bundle)
CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY,
    version TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    module_count INTEGER NOT NULL DEFAULT 0,
    ingested_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_builds_ingested_at ON builds(ingested_at);

-- Modules table (registration order is seq)
CREATE TABLE IF NOT EXISTS modules (
    build_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    module_id TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    exports TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (build_id, module_id),
    FOREIGN KEY (build_id) REFERENCES builds(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_modules_build_seq ON modules(build_id, seq);

-- Registry events table (interest lifecycle and patch check results)
CREATE TABLE IF NOT EXISTS registry_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    build_id TEXT NOT NULL DEFAULT '',
    module_id TEXT NOT NULL DEFAULT '',
    interest_id TEXT NOT NULL DEFAULT '',
    plugin TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_registry_events_timestamp ON registry_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_registry_events_build ON registry_events(build_id);
CREATE INDEX IF NOT EXISTS idx_registry_events_type ON registry_events(type);
CREATE INDEX IF NOT EXISTS idx_registry_events_severity ON registry_events(severity);
`
