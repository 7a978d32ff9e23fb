// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and owns its schema.

# Drivers

Open picks lib/pq for postgres and modernc.org/sqlite for sqlite:

	conn, err := db.Open(ctx, cfg)

SQLite is limited to one open connection.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The DDL avoids dialect specific types so the same text runs on both drivers.

# Tables

  - we_vote_setting: named counters
  - voter: accounts, cached primary email/SMS, flag bitmasks
  - voter_device_link: device id to voter, secret code state
  - email_address, sms_phone_number: sign-in identities
  - voter_address: ballot address per voter
  - organization, follow_organization
  - star_item
  - analytics_action

# Sequences

Primary keys and we_vote_id numbers come from NextSequenceValue, an
upsert on we_vote_setting that returns the incremented value. It takes
a Queryer so it can run inside WithTx.
*/
package db
