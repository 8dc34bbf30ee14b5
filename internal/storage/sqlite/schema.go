package sqlite

const schema = `
-- Contacts table: the lead/customer population being matched.
-- Leads and customers are separate id spaces, so the key is (type, id).
CREATE TABLE IF NOT EXISTS contacts (
    id TEXT NOT NULL,
    type TEXT NOT NULL CHECK(type IN ('lead', 'customer')),
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'merged')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (type, id)
);

CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(status);
CREATE INDEX IF NOT EXISTS idx_contacts_created_at ON contacts(created_at);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(phone);

-- Detection results table
-- snapshot holds the input fields used for matching, matches holds the
-- ranked PotentialMatch list; both are JSON documents.
CREATE TABLE IF NOT EXISTS detection_results (
    id TEXT PRIMARY KEY,
    record_type TEXT NOT NULL CHECK(record_type IN ('lead', 'customer')),
    record_id TEXT NOT NULL,
    snapshot TEXT NOT NULL DEFAULT '{}',
    matches TEXT NOT NULL DEFAULT '[]',
    highest_confidence REAL NOT NULL DEFAULT 0 CHECK(highest_confidence >= 0 AND highest_confidence <= 1),
    recommended_action TEXT NOT NULL CHECK(recommended_action IN ('merge', 'review', 'ignore')),
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'approved', 'auto_processed', 'rejected')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_detection_results_status ON detection_results(status);
CREATE INDEX IF NOT EXISTS idx_detection_results_created_at ON detection_results(created_at);
CREATE INDEX IF NOT EXISTS idx_detection_results_record ON detection_results(record_type, record_id);

-- Manual review queue table
CREATE TABLE IF NOT EXISTS review_queue (
    id TEXT PRIMARY KEY,
    detection_id TEXT NOT NULL,
    priority TEXT NOT NULL CHECK(priority IN ('high', 'medium', 'low')),
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'completed')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at DATETIME,
    FOREIGN KEY (detection_id) REFERENCES detection_results(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status);
CREATE INDEX IF NOT EXISTS idx_review_queue_priority ON review_queue(priority);
CREATE INDEX IF NOT EXISTS idx_review_queue_detection ON review_queue(detection_id);

-- Merge operations table (audit trail for auto and approved merges)
CREATE TABLE IF NOT EXISTS merge_operations (
    id TEXT PRIMARY KEY,
    source_type TEXT NOT NULL CHECK(source_type IN ('lead', 'customer')),
    source_id TEXT NOT NULL,
    target_type TEXT NOT NULL CHECK(target_type IN ('lead', 'customer')),
    target_id TEXT NOT NULL,
    conflicts TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'completed', 'failed')),
    error TEXT NOT NULL DEFAULT '',
    actor TEXT NOT NULL DEFAULT 'system',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_merge_operations_status ON merge_operations(status);
CREATE INDEX IF NOT EXISTS idx_merge_operations_created_at ON merge_operations(created_at);
CREATE INDEX IF NOT EXISTS idx_merge_operations_source ON merge_operations(source_type, source_id);
CREATE INDEX IF NOT EXISTS idx_merge_operations_target ON merge_operations(target_type, target_id);
`
