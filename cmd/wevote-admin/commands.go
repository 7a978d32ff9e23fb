// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wevote/wevote-server/cache"
	"github.com/wevote/wevote-server/cliparse"
	"github.com/wevote/wevote-server/db"
	"github.com/wevote/wevote-server/logging"
	"github.com/wevote/wevote-server/models"
)

// adminFlags are shared by every subcommand
type adminFlags struct {
	databaseURL  string
	databaseType string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	var flags adminFlags

	rootCmd := &cobra.Command{
		Use:          "wevote-admin",
		Short:        "Operator tasks for the We Vote API database",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside local development
			_ = godotenv.Load()
			logging.Setup(cliparse.LoggerSettings{
				LogLevel: flags.logLevel,
				LogType:  cliparse.LogTypeConsole,
			})
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.databaseURL, "database-url", "d", "", "Database URL (default $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVarP(&flags.databaseType, "database-type", "t", "", "Database type, sqlite or postgres (default $DATABASE_TYPE, then sqlite)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", cliparse.LogLevelWarning, "Log level (info, debug, warning, error)")

	rootCmd.AddCommand(
		newSchemaCmd(&flags),
		newStatsCmd(&flags),
		newPurgeDeviceLinksCmd(&flags),
	)
	return rootCmd
}

// open connects using flags first, then the environment
func (f *adminFlags) open(ctx context.Context) (*sql.DB, error) {
	cfg := cliparse.Config{
		DatabaseURL:  f.databaseURL,
		DatabaseType: f.databaseType,
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
	}
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = "sqlite"
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return nil, fmt.Errorf("unknown database type %q", cfg.DatabaseType)
	}
	return db.Open(ctx, cfg)
}

func newSchemaCmd(flags *adminFlags) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create all tables",
		Long:  "Create all tables. Existing tables are left alone unless --reset drops them first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if reset {
				if err := db.DropSchema(cmd.Context(), conn); err != nil {
					return err
				}
				slog.Warn("dropped all tables")
			}
			if err := db.CreateSchema(conn); err != nil {
				return fmt.Errorf("schema creation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%d tables)\n", len(db.Tables))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop every table before creating the schema (destroys all data)")
	return cmd
}

// Stats summarizes table sizes for operators
type Stats struct {
	ActiveVoters     int64
	InactiveVoters   int64
	Organizations    int64
	DeviceLinks      int64
	VerifiedEmails   int64
	VerifiedSMS      int64
	Follows          int64
	Stars            int64
	AnalyticsActions int64
	NewestDeviceLink time.Time
	HasDeviceLinks   bool
}

// collectStats runs one COUNT per figure
func collectStats(ctx context.Context, q db.Queryer) (Stats, error) {
	var s Stats
	counts := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{&s.ActiveVoters, `SELECT COUNT(*) FROM voter WHERE is_active = TRUE`, nil},
		{&s.InactiveVoters, `SELECT COUNT(*) FROM voter WHERE is_active = FALSE`, nil},
		{&s.Organizations, `SELECT COUNT(*) FROM organization`, nil},
		{&s.DeviceLinks, `SELECT COUNT(*) FROM voter_device_link`, nil},
		{&s.VerifiedEmails, `SELECT COUNT(*) FROM email_address WHERE email_ownership_is_verified = TRUE AND deleted = FALSE`, nil},
		{&s.VerifiedSMS, `SELECT COUNT(*) FROM sms_phone_number WHERE sms_ownership_is_verified = TRUE AND deleted = FALSE`, nil},
		{&s.Follows, `SELECT COUNT(*) FROM follow_organization WHERE following_status = $1`, []any{models.FollowingStatusFollowing}},
		{&s.Stars, `SELECT COUNT(*) FROM star_item WHERE star_status = $1`, []any{models.StarStatusStarred}},
		{&s.AnalyticsActions, `SELECT COUNT(*) FROM analytics_action`, nil},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("stats query failed: %w", err)
		}
	}

	// ids come from an increasing counter, so the highest id is the newest link
	err := q.QueryRowContext(ctx, `
		SELECT date_last_changed FROM voter_device_link ORDER BY id DESC LIMIT 1
	`).Scan(&s.NewestDeviceLink)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Stats{}, fmt.Errorf("newest device link query failed: %w", err)
	default:
		s.HasDeviceLinks = true
	}
	return s, nil
}

func printStats(w io.Writer, s Stats) {
	rows := []struct {
		label string
		value int64
	}{
		{"active voters", s.ActiveVoters},
		{"inactive voters", s.InactiveVoters},
		{"organizations", s.Organizations},
		{"device links", s.DeviceLinks},
		{"verified emails", s.VerifiedEmails},
		{"verified phones", s.VerifiedSMS},
		{"follows", s.Follows},
		{"stars", s.Stars},
		{"analytics actions", s.AnalyticsActions},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-18s %s\n", r.label+":", humanize.Comma(r.value))
	}
	if s.HasDeviceLinks {
		fmt.Fprintf(w, "%-18s %s\n", "last sign-in:", humanize.Time(s.NewestDeviceLink))
	}
}

func newStatsCmd(flags *adminFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print voter, organization and device counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			s, err := collectStats(cmd.Context(), conn)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

// staleDeviceLinks lists the voter_device_ids of links not changed since
// cutoff. Timestamps are compared after scanning so the result does not
// depend on how the driver stores them.
func staleDeviceLinks(ctx context.Context, q db.Queryer, cutoff time.Time) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT voter_device_id, date_last_changed FROM voter_device_link ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list device links: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var voterDeviceID string
		var changed time.Time
		if err := rows.Scan(&voterDeviceID, &changed); err != nil {
			return nil, fmt.Errorf("failed to scan device link: %w", err)
		}
		if changed.Before(cutoff) {
			stale = append(stale, voterDeviceID)
		}
	}
	return stale, rows.Err()
}

// purgeDeviceLinks deletes every link not changed since cutoff and returns
// the voter_device_ids it deleted
func purgeDeviceLinks(ctx context.Context, conn *sql.DB, cutoff time.Time) ([]string, error) {
	var deleted []string
	err := db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		stale, err := staleDeviceLinks(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		for _, id := range stale {
			if _, err := tx.ExecContext(ctx, `DELETE FROM voter_device_link WHERE voter_device_id = $1`, id); err != nil {
				return fmt.Errorf("failed to delete device link: %w", err)
			}
		}
		deleted = stale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// evictDeviceLinks drops purged links from a shared cache in batches
func evictDeviceLinks(ctx context.Context, links cache.DeviceLinks, voterDeviceIDs []string) error {
	const batch = 500
	for len(voterDeviceIDs) > 0 {
		n := min(batch, len(voterDeviceIDs))
		if err := links.Delete(ctx, voterDeviceIDs[:n]...); err != nil {
			return fmt.Errorf("failed to evict purged device links: %w", err)
		}
		voterDeviceIDs = voterDeviceIDs[n:]
	}
	return nil
}

func newPurgeDeviceLinksCmd(flags *adminFlags) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool
	var redisURL string

	cmd := &cobra.Command{
		Use:   "purge-device-links",
		Short: "Delete device links that have not been used for a while",
		Long: "Delete voter_device_link rows whose last use is older than --older-than. " +
			"A link counts as used whenever a server reads it from the table, which happens at least " +
			"once per cache TTL for any device still making requests. " +
			"Devices that lose their link are signed out; their voters are kept. " +
			"Purged links are evicted from Redis when --redis-url or REDIS_URL is set; " +
			"in-memory server caches drop them within the TTL.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= cache.DefaultTTL {
				return fmt.Errorf("--older-than must be longer than the cache TTL (%s)", cache.DefaultTTL)
			}
			conn, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			cutoff := time.Now().UTC().Add(-olderThan)
			if dryRun {
				stale, err := staleDeviceLinks(cmd.Context(), conn, cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "would delete %s device links last used before %s\n",
					humanize.Comma(int64(len(stale))), humanize.Time(cutoff))
				return nil
			}

			deleted, err := purgeDeviceLinks(cmd.Context(), conn, cutoff)
			if err != nil {
				return err
			}
			slog.Info("purged device links", "count", len(deleted), "cutoff", cutoff)
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s device links last used before %s\n",
				humanize.Comma(int64(len(deleted))), humanize.Time(cutoff))

			if redisURL = firstNonEmpty(redisURL, os.Getenv("REDIS_URL")); redisURL == "" || len(deleted) == 0 {
				return nil
			}
			links, err := cache.NewRedis(cmd.Context(), redisURL, cache.DefaultTTL)
			if err != nil {
				return err
			}
			defer links.Close()
			if err := evictDeviceLinks(cmd.Context(), links, deleted); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evicted %s device links from redis\n", humanize.Comma(int64(len(deleted))))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 180*24*time.Hour, "Minimum time since last use, e.g. 720h")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count the links that would be deleted")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "Redis cache to evict purged links from (default $REDIS_URL)")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
