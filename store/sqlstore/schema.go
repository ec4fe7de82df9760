package sqlstore

// Money is stored as decimal text in SQLite and DECIMAL in MySQL; both
// round-trip through decimal.Decimal's Scanner. Calendar dates are
// YYYY-MM-DD text so they compare lexically; timestamps are RFC3339.
//
// Serial columns are serial_start/serial_end because END is a keyword.
// Statements are split on ";" so no literal may contain one.

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scopes (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	active     INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS staff (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	active     INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_categories (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	unit_price TEXT NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_bundles (
	id           TEXT PRIMARY KEY,
	scope_id     TEXT NOT NULL REFERENCES scopes(id),
	unit_price   TEXT NOT NULL,
	color        TEXT NOT NULL,
	serial_start INTEGER NOT NULL,
	serial_end   INTEGER NOT NULL,
	status       TEXT NOT NULL CHECK (status IN ('available', 'distributed', 'settled', 'cancelled')),
	created_at   TEXT NOT NULL,
	CHECK (serial_start <= serial_end)
);

CREATE INDEX IF NOT EXISTS idx_bundles_scope_color_start
	ON stock_bundles(scope_id, color, serial_start);

CREATE INDEX IF NOT EXISTS idx_bundles_scope_status
	ON stock_bundles(scope_id, status);

CREATE TABLE IF NOT EXISTS distributions (
	id                TEXT PRIMARY KEY,
	scope_id          TEXT NOT NULL REFERENCES scopes(id),
	staff_id          TEXT NOT NULL REFERENCES staff(id),
	rate_id           TEXT NOT NULL REFERENCES rate_categories(id),
	bundle_id         TEXT REFERENCES stock_bundles(id),
	serial_start      INTEGER NOT NULL,
	serial_end        INTEGER NOT NULL,
	distributed_on    TEXT NOT NULL,
	status            TEXT NOT NULL CHECK (status IN ('distributed', 'settled', 'cancelled')),
	returned_start    INTEGER,
	settled_on        TEXT,
	tickets_sold      INTEGER,
	revenue           TEXT,
	cash_amount       TEXT,
	electronic_amount TEXT,
	settled_by        TEXT,
	remainder_id      TEXT,
	created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_distributions_staff_status
	ON distributions(scope_id, staff_id, status, settled_on);

CREATE INDEX IF NOT EXISTS idx_distributions_bundle
	ON distributions(bundle_id);

CREATE TABLE IF NOT EXISTS accounting_entries (
	id               TEXT PRIMARY KEY,
	scope_id         TEXT NOT NULL REFERENCES scopes(id),
	category         TEXT NOT NULL,
	amount           TEXT NOT NULL,
	transaction_date TEXT NOT NULL,
	reference        TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	user_id          TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_reference
	ON accounting_entries(reference);

CREATE INDEX IF NOT EXISTS idx_entries_scope
	ON accounting_entries(scope_id, transaction_date);

CREATE TABLE IF NOT EXISTS staff_settlements (
	id              TEXT PRIMARY KEY,
	staff_id        TEXT NOT NULL REFERENCES staff(id),
	scope_id        TEXT NOT NULL REFERENCES scopes(id),
	settlement_date TEXT NOT NULL,
	expected        TEXT NOT NULL,
	actual          TEXT NOT NULL,
	difference      TEXT NOT NULL,
	notes           TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL CHECK (status IN ('unsettled', 'settled')),
	cleared_by      TEXT,
	cleared_on      TEXT,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_staff_settlements_staff
	ON staff_settlements(scope_id, staff_id, status)
`

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS scopes (
	id         VARCHAR(64) NOT NULL PRIMARY KEY,
	name       VARCHAR(255) NOT NULL UNIQUE,
	active     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at VARCHAR(40) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS staff (
	id         VARCHAR(64) NOT NULL PRIMARY KEY,
	name       VARCHAR(255) NOT NULL UNIQUE,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at VARCHAR(40) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS rate_categories (
	id         VARCHAR(64) NOT NULL PRIMARY KEY,
	name       VARCHAR(255) NOT NULL UNIQUE,
	unit_price DECIMAL(14,2) NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at VARCHAR(40) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS stock_bundles (
	id           VARCHAR(64) NOT NULL PRIMARY KEY,
	scope_id     VARCHAR(64) NOT NULL,
	unit_price   DECIMAL(14,2) NOT NULL,
	color        VARCHAR(64) NOT NULL,
	serial_start BIGINT NOT NULL,
	serial_end   BIGINT NOT NULL,
	status       VARCHAR(16) NOT NULL,
	created_at   VARCHAR(40) NOT NULL,
	INDEX idx_bundles_scope_color_start (scope_id, color, serial_start),
	INDEX idx_bundles_scope_status (scope_id, status),
	CONSTRAINT fk_bundles_scope FOREIGN KEY (scope_id) REFERENCES scopes(id),
	CONSTRAINT chk_bundles_range CHECK (serial_start <= serial_end)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS distributions (
	id                VARCHAR(64) NOT NULL PRIMARY KEY,
	scope_id          VARCHAR(64) NOT NULL,
	staff_id          VARCHAR(64) NOT NULL,
	rate_id           VARCHAR(64) NOT NULL,
	bundle_id         VARCHAR(64) NULL,
	serial_start      BIGINT NOT NULL,
	serial_end        BIGINT NOT NULL,
	distributed_on    VARCHAR(10) NOT NULL,
	status            VARCHAR(16) NOT NULL,
	returned_start    BIGINT NULL,
	settled_on        VARCHAR(10) NULL,
	tickets_sold      BIGINT NULL,
	revenue           DECIMAL(14,2) NULL,
	cash_amount       DECIMAL(14,2) NULL,
	electronic_amount DECIMAL(14,2) NULL,
	settled_by        VARCHAR(255) NULL,
	remainder_id      VARCHAR(64) NULL,
	created_at        VARCHAR(40) NOT NULL,
	INDEX idx_distributions_staff_status (scope_id, staff_id, status, settled_on),
	INDEX idx_distributions_bundle (bundle_id),
	CONSTRAINT fk_distributions_scope FOREIGN KEY (scope_id) REFERENCES scopes(id),
	CONSTRAINT fk_distributions_staff FOREIGN KEY (staff_id) REFERENCES staff(id),
	CONSTRAINT fk_distributions_rate FOREIGN KEY (rate_id) REFERENCES rate_categories(id),
	CONSTRAINT fk_distributions_bundle FOREIGN KEY (bundle_id) REFERENCES stock_bundles(id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS accounting_entries (
	id               VARCHAR(64) NOT NULL PRIMARY KEY,
	scope_id         VARCHAR(64) NOT NULL,
	category         VARCHAR(64) NOT NULL,
	amount           DECIMAL(14,2) NOT NULL,
	transaction_date VARCHAR(10) NOT NULL,
	reference        VARCHAR(128) NOT NULL,
	description      VARCHAR(512) NOT NULL DEFAULT '',
	user_id          VARCHAR(255) NOT NULL DEFAULT '',
	created_at       VARCHAR(40) NOT NULL,
	INDEX idx_entries_reference (reference),
	INDEX idx_entries_scope (scope_id, transaction_date),
	CONSTRAINT fk_entries_scope FOREIGN KEY (scope_id) REFERENCES scopes(id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS staff_settlements (
	id              VARCHAR(64) NOT NULL PRIMARY KEY,
	staff_id        VARCHAR(64) NOT NULL,
	scope_id        VARCHAR(64) NOT NULL,
	settlement_date VARCHAR(10) NOT NULL,
	expected        DECIMAL(14,2) NOT NULL,
	actual          DECIMAL(14,2) NOT NULL,
	difference      DECIMAL(14,2) NOT NULL,
	notes           TEXT NOT NULL,
	status          VARCHAR(16) NOT NULL,
	cleared_by      VARCHAR(255) NULL,
	cleared_on      VARCHAR(10) NULL,
	created_at      VARCHAR(40) NOT NULL,
	INDEX idx_staff_settlements_staff (scope_id, staff_id, status),
	CONSTRAINT fk_staff_settlements_staff FOREIGN KEY (staff_id) REFERENCES staff(id),
	CONSTRAINT fk_staff_settlements_scope FOREIGN KEY (scope_id) REFERENCES scopes(id)
) ENGINE=InnoDB
`
