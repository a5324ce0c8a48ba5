package store

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	content       TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	priority      INTEGER NOT NULL DEFAULT 1,
	project_id    TEXT NOT NULL DEFAULT '',
	section_id    TEXT NOT NULL DEFAULT '',
	parent_id     TEXT NOT NULL DEFAULT '',
	labels        TEXT NOT NULL DEFAULT '[]',
	due           TEXT,
	url           TEXT NOT NULL DEFAULT '',
	is_completed  INTEGER NOT NULL DEFAULT 0,
	is_deleted    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS projects (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	parent_id    TEXT NOT NULL DEFAULT '',
	color        TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	is_inbox     INTEGER NOT NULL DEFAULT 0,
	is_favorite  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sections (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	project_id  TEXT NOT NULL DEFAULT '',
	item_order  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS labels (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	color        TEXT NOT NULL DEFAULT '',
	is_favorite  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS events (
	id                 TEXT PRIMARY KEY,
	event_date         DATETIME NOT NULL,
	event_type         TEXT NOT NULL,
	object_type        TEXT NOT NULL,
	object_id          TEXT NOT NULL,
	extra_data         TEXT NOT NULL DEFAULT '{}',
	initiator_id       TEXT NOT NULL DEFAULT '',
	parent_item_id     TEXT NOT NULL DEFAULT '',
	parent_project_id  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_object ON events(object_id, event_date);
CREATE INDEX IF NOT EXISTS idx_events_date ON events(event_date);

CREATE TABLE IF NOT EXISTS plans (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	horizon     TEXT NOT NULL,
	active      INTEGER NOT NULL DEFAULT 0,
	start_date  DATETIME NOT NULL,
	end_date    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plans_horizon_active ON plans(horizon, active);

CREATE TABLE IF NOT EXISTS tasks_in_plans (
	record_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id    TEXT NOT NULL,
	plan_id    INTEGER NOT NULL,
	status     TEXT NOT NULL,
	timestamp  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_in_plans_plan ON tasks_in_plans(plan_id, task_id, timestamp);

CREATE TABLE IF NOT EXISTS system_params (
	param  TEXT NOT NULL UNIQUE,
	value  TEXT NOT NULL
);
`
