// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// DropSchema removes every table. Used by the admin CLI and tests.
func DropSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range Tables {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}

// Tables lists every table in dependency order (children first).
var Tables = []string{
	"analytics_action",
	"star_item",
	"follow_organization",
	"organization",
	"voter_address",
	"sms_phone_number",
	"email_address",
	"voter_device_link",
	"voter",
	"we_vote_setting",
}

// The DDL sticks to types and clauses PostgreSQL and SQLite share.
// Primary keys come from NextSequenceValue rather than SERIAL/AUTOINCREMENT.
const schema = `
-- Named counters for ids and we_vote_ids
CREATE TABLE IF NOT EXISTS we_vote_setting (
    name TEXT PRIMARY KEY,
    value BIGINT NOT NULL
);

-- Voters
CREATE TABLE IF NOT EXISTS voter (
    id BIGINT PRIMARY KEY,
    we_vote_id TEXT NOT NULL UNIQUE,
    first_name TEXT NOT NULL DEFAULT '',
    middle_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    email TEXT,
    primary_email_we_vote_id TEXT,
    email_ownership_is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    normalized_sms_phone_number TEXT,
    primary_sms_we_vote_id TEXT,
    sms_ownership_is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    data_to_preserve BOOLEAN NOT NULL DEFAULT FALSE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    interface_status_flags BIGINT NOT NULL DEFAULT 0,
    notification_settings_flags BIGINT NOT NULL DEFAULT 0,
    profile_image_url TEXT NOT NULL DEFAULT '',
    date_joined TIMESTAMP NOT NULL,
    date_last_changed TIMESTAMP NOT NULL
);

-- Sessions: many device ids per voter
CREATE TABLE IF NOT EXISTS voter_device_link (
    id BIGINT PRIMARY KEY,
    voter_device_id TEXT NOT NULL UNIQUE,
    voter_id BIGINT NOT NULL,
    state_code TEXT NOT NULL DEFAULT '',
    secret_code TEXT,
    date_secret_code_generated TIMESTAMP,
    secret_code_failed_tries_for_this_code INTEGER NOT NULL DEFAULT 0,
    secret_code_failed_tries_all_time INTEGER NOT NULL DEFAULT 0,
    email_secret_key TEXT,
    sms_secret_key TEXT,
    date_last_changed TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_voter_device_link_voter ON voter_device_link(voter_id);

-- Email addresses, verified or not
CREATE TABLE IF NOT EXISTS email_address (
    id BIGINT PRIMARY KEY,
    we_vote_id TEXT NOT NULL UNIQUE,
    voter_we_vote_id TEXT NOT NULL,
    normalized_email_address TEXT NOT NULL,
    email_ownership_is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    secret_key TEXT UNIQUE,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    date_last_changed TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_email_address_voter ON email_address(voter_we_vote_id);
CREATE INDEX IF NOT EXISTS idx_email_address_normalized ON email_address(normalized_email_address);

-- SMS phone numbers, E.164
CREATE TABLE IF NOT EXISTS sms_phone_number (
    id BIGINT PRIMARY KEY,
    we_vote_id TEXT NOT NULL UNIQUE,
    voter_we_vote_id TEXT NOT NULL,
    normalized_sms_phone_number TEXT NOT NULL,
    sms_ownership_is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    secret_key TEXT UNIQUE,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    date_last_changed TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sms_phone_number_voter ON sms_phone_number(voter_we_vote_id);
CREATE INDEX IF NOT EXISTS idx_sms_phone_number_normalized ON sms_phone_number(normalized_sms_phone_number);

-- Addresses; one per voter per type
CREATE TABLE IF NOT EXISTS voter_address (
    id BIGINT PRIMARY KEY,
    voter_id BIGINT NOT NULL,
    address_type TEXT NOT NULL,
    text_for_map_search TEXT NOT NULL DEFAULT '',
    normalized_line1 TEXT NOT NULL DEFAULT '',
    normalized_city TEXT NOT NULL DEFAULT '',
    normalized_state TEXT NOT NULL DEFAULT '',
    normalized_zip TEXT NOT NULL DEFAULT '',
    voter_entered_address BOOLEAN NOT NULL DEFAULT FALSE,
    google_civic_election_id BIGINT NOT NULL DEFAULT 0,
    date_last_changed TIMESTAMP NOT NULL,
    UNIQUE (voter_id, address_type)
);

-- Organizations
CREATE TABLE IF NOT EXISTS organization (
    id BIGINT PRIMARY KEY,
    we_vote_id TEXT NOT NULL UNIQUE,
    organization_name TEXT NOT NULL,
    organization_website TEXT NOT NULL DEFAULT '',
    organization_twitter_handle TEXT NOT NULL DEFAULT '',
    organization_email TEXT NOT NULL DEFAULT '',
    organization_type TEXT NOT NULL DEFAULT 'U',
    date_last_changed TIMESTAMP NOT NULL
);

-- Follow state per voter per organization
CREATE TABLE IF NOT EXISTS follow_organization (
    id BIGINT PRIMARY KEY,
    voter_id BIGINT NOT NULL,
    organization_id BIGINT NOT NULL,
    organization_we_vote_id TEXT NOT NULL,
    following_status TEXT NOT NULL,
    date_last_changed TIMESTAMP NOT NULL,
    UNIQUE (voter_id, organization_id)
);

CREATE INDEX IF NOT EXISTS idx_follow_organization_org ON follow_organization(organization_id);

-- Stars on ballot items
CREATE TABLE IF NOT EXISTS star_item (
    id BIGINT PRIMARY KEY,
    voter_id BIGINT NOT NULL,
    kind_of_ballot_item TEXT NOT NULL,
    ballot_item_we_vote_id TEXT NOT NULL,
    star_status TEXT NOT NULL,
    date_last_changed TIMESTAMP NOT NULL,
    UNIQUE (voter_id, kind_of_ballot_item, ballot_item_we_vote_id)
);

-- Client analytics actions
CREATE TABLE IF NOT EXISTS analytics_action (
    id BIGINT PRIMARY KEY,
    action_constant INTEGER NOT NULL,
    voter_we_vote_id TEXT NOT NULL DEFAULT '',
    google_civic_election_id BIGINT NOT NULL DEFAULT 0,
    organization_we_vote_id TEXT NOT NULL DEFAULT '',
    ballot_item_we_vote_id TEXT NOT NULL DEFAULT '',
    date_as_integer INTEGER NOT NULL,
    ip_hash TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    is_bot BOOLEAN NOT NULL DEFAULT FALSE,
    exact_time TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analytics_action_voter ON analytics_action(voter_we_vote_id);
`
