// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the We Vote API server.

We Vote is a nonpartisan voter guide. This server holds voters and the
devices they use, their email and SMS sign-in identities, ballot
addresses, the organizations they follow, starred ballot items and
client analytics actions.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=wevote.db IP_HASH_SALT=... go run .

Or against PostgreSQL with flags:

	go run . -p 8000 -t postgres -d "postgres://..." --ip-salt ...

A .env file in the working directory is loaded first when present.

# Configuration

Required settings:

  - DATABASE_URL (-d): database connection string or SQLite file
  - IP_HASH_SALT (--ip-salt): secret used to hash client addresses

Optional settings:

  - PORT (-p): Server port (default: 8000)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - SITE_UNIQUE_ID_PREFIX (--site-prefix): prefix in minted we_vote_ids
  - WEB_APP_ROOT_URL (--web-app-root): base of links in emails
  - LOG_LEVEL, LOG_TYPE, LOG_FILE: logging (console or rotated JSON file)
  - SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM:
    outbound email; without SMTP_HOST emails are only logged
  - KAFKA_BROKERS (--kafka-brokers), KAFKA_TOPIC: analytics publishing
  - CACHE_BACKEND (--cache), REDIS_URL, CACHE_SIZE: device link cache

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: API handlers (voters, sign-in, organizations, stars, analytics)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, metrics, JSON helpers
  - models: Request/response types and status flag constants
  - auth: Identifier and secret generation, normalization
  - db: Connection, schema creation and transactions
  - cache: Device link cache (LRU or Redis)
  - outbound: Email and SMS delivery
  - analytics: Analytics action publishing (Kafka)
  - metrics: Prometheus metrics
  - apidocs: Endpoint documentation
  - cliparse: Configuration parsing
  - logging: slog setup

The wevote-admin command under cmd/ runs operator tasks against the
same database.

See package documentation for each component.
*/
package main
