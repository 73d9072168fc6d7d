package database

// SchemaSQL is the DDL for the in-store location-tracking dataset. The
// server consumes the dataset as a static, trusted catalog; the DDL is
// carried for tooling and tests that need to bootstrap a database file.
//
// Target scale: ~10-20 zones, ~5-30 entities, ~20K-80K pings/day.
const SchemaSQL = `
-- ZONES: physical areas within the building
CREATE TABLE zones (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    zone_type TEXT,        -- lobby, loading_dock, aisle, floor_landing, department, other
    floor INTEGER NOT NULL,
    department TEXT,
    polygon_coords TEXT,   -- JSON string for simple boundary
    metadata TEXT,         -- JSON for extensibility
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_zones_floor ON zones(floor);
CREATE INDEX idx_zones_zone_type ON zones(zone_type);
CREATE INDEX idx_zones_department ON zones(department);

-- ENTITIES: trackable objects and people
CREATE TABLE entities (
    id INTEGER PRIMARY KEY,
    external_id TEXT UNIQUE,  -- device MAC, employee badge, etc.
    name TEXT NOT NULL,
    type TEXT CHECK(type IN ('customer', 'employee', 'asset', 'device')),
    tags TEXT,  -- JSON array for categorization
    first_seen TIMESTAMP,
    last_seen TIMESTAMP
);

CREATE INDEX idx_entities_type ON entities(type);
CREATE INDEX idx_entities_last_seen ON entities(last_seen);

-- LOCATION PINGS: real-time location readings from tracking hardware
CREATE TABLE location_pings (
    id INTEGER PRIMARY KEY,
    entity_id INTEGER NOT NULL,
    zone_id INTEGER NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    rssi INTEGER,           -- signal strength (-100 to -30)
    accuracy REAL,          -- estimated accuracy in meters
    source_device TEXT,     -- which receiver/beacon
    raw_data TEXT,          -- JSON for raw signal data
    FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE,
    FOREIGN KEY (zone_id) REFERENCES zones(id) ON DELETE CASCADE
);

CREATE INDEX idx_pings_timestamp ON location_pings(timestamp);
CREATE INDEX idx_pings_entity_zone ON location_pings(entity_id, zone_id);
CREATE INDEX idx_pings_rssi ON location_pings(rssi) WHERE rssi < -80;

-- ZONE EVENTS: derived enter/exit/dwell events
CREATE TABLE zone_events (
    id INTEGER PRIMARY KEY,
    entity_id INTEGER NOT NULL,
    zone_id INTEGER NOT NULL,
    event_type TEXT CHECK(event_type IN ('enter', 'exit', 'dwell')),
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP,
    duration_seconds INTEGER,
    confidence REAL DEFAULT 1.0,
    FOREIGN KEY (entity_id) REFERENCES entities(id),
    FOREIGN KEY (zone_id) REFERENCES zones(id)
);

CREATE INDEX idx_events_time_range ON zone_events(start_time, end_time);
CREATE INDEX idx_events_duration ON zone_events(duration_seconds);
`
