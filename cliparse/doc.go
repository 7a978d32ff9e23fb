// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a validated Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first (godotenv), so
local development can keep secrets out of the shell history.

# Config Fields

  - Port: Server listen port (default: 8000)
  - DatabaseURL: PostgreSQL connection string or SQLite file (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - SiteUniqueIDPrefix: inserted into every we_vote_id (wv{prefix}voter{n})
  - IPHashSalt: Secret for hashing client IPs in analytics (required)
  - WebAppRootURL: Base of verification links sent by email
  - Logger: level, console or rotating file output
  - SMTP: outbound mail server; empty host logs messages instead
  - KafkaBrokers / KafkaTopic: analytics event stream (optional)
  - CacheBackend / RedisURL / CacheSize: device link cache

# CLI Flags

	-p              Server port
	-d              Database URL
	-t              Database type
	-site-prefix    Site unique id prefix
	-web-app-root   Web app root URL
	-ip-salt        IP hash salt
	-log-level      Log level
	-log-type       console or file
	-log-file       Log file path
	-kafka-brokers  Comma separated brokers
	-cache          memory or redis

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE, SITE_UNIQUE_ID_PREFIX,
	WEB_APP_ROOT_URL, IP_HASH_SALT, LOG_LEVEL, LOG_TYPE, LOG_FILE,
	LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS, LOG_MAX_AGE_DAYS, SMTP_HOST,
	SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM, KAFKA_BROKERS,
	KAFKA_TOPIC, CACHE_BACKEND, REDIS_URL, CACHE_SIZE

CLI flags take precedence over environment variables.

# Validation

Config.Validate runs go-playground/validator over the struct tags and
then the file-logger and Kafka cross-field checks. ParseFlags fails if
DATABASE_URL or IP_HASH_SALT is missing, or if the redis cache is
selected without REDIS_URL.
*/
package cliparse
