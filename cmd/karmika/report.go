package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jackc/pgx/v5"

	"github.com/sattvalabs/karmika/internal/config"
)

var (
	reportConfigPath string
	reportDays       int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print an activity report from a PostgreSQL backend",
	Long: `Run a read-only activity report against a PostgreSQL backend: entry
counts, karma balance, and the most frequent patterns per user over the
last N days. Requires storage.driver=postgres (or KARMIKA_DB_DSN).

Example:
  karmika report --days 30`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	reportCmd.Flags().IntVar(&reportDays, "days", 30, "report window in days")
}

func runReport(_ *cobra.Command, _ []string) error {
	var dsn string
	if cfg, err := config.Load(goutils.Env("KARMIKA_CONFIG", reportConfigPath)); err == nil {
		if cfg.Storage != nil && cfg.Storage.Postgres != nil {
			dsn = cfg.Storage.Postgres.DSN
		}
	}
	if envDSN := os.Getenv("KARMIKA_DB_DSN"); envDSN != "" {
		dsn = envDSN
	}
	if dsn == "" {
		return fmt.Errorf("the report command requires a PostgreSQL backend (set storage.postgres.dsn or KARMIKA_DB_DSN)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer conn.Close(context.Background())

	since := time.Now().UTC().AddDate(0, 0, -reportDays)

	if err := printUserActivity(ctx, conn, since); err != nil {
		return err
	}
	return printTopPatterns(ctx, conn, since)
}

// printUserActivity prints entry counts and point balances per user.
func printUserActivity(ctx context.Context, conn *pgx.Conn, since time.Time) error {
	rows, err := conn.Query(ctx, `
		SELECT user_id,
		       COUNT(*)                                         AS entries,
		       COUNT(*) FILTER (WHERE type = 'good')            AS good,
		       COUNT(*) FILTER (WHERE type = 'bad')             AS bad,
		       COALESCE(SUM(score) FILTER (WHERE type = 'good'), 0) AS good_points,
		       COALESCE(ABS(SUM(score) FILTER (WHERE type = 'bad')), 0) AS bad_points
		FROM karma_entries
		WHERE deleted = false AND entry_date >= $1
		GROUP BY user_id
		ORDER BY entries DESC`,
		since,
	)
	if err != nil {
		return fmt.Errorf("querying user activity: %w", err)
	}
	defer rows.Close()

	fmt.Printf("User activity since %s\n", since.Format("2006-01-02"))
	fmt.Printf("%-24s %8s %6s %6s %12s %12s\n", "USER", "ENTRIES", "GOOD", "BAD", "GOOD PTS", "BAD PTS")

	for rows.Next() {
		var userID string
		var entries, good, bad int64
		var goodPoints, badPoints float64
		if err := rows.Scan(&userID, &entries, &good, &bad, &goodPoints, &badPoints); err != nil {
			return fmt.Errorf("scanning user activity: %w", err)
		}
		fmt.Printf("%-24s %8d %6d %6d %12.1f %12.1f\n", userID, entries, good, bad, goodPoints, badPoints)
	}
	return rows.Err()
}

// printTopPatterns prints the most frequent behavioral patterns in the window.
func printTopPatterns(ctx context.Context, conn *pgx.Conn, since time.Time) error {
	rows, err := conn.Query(ctx, `
		SELECT pattern, type, COUNT(*) AS frequency, SUM(score) AS total_impact
		FROM karma_entries
		WHERE deleted = false AND entry_date >= $1 AND pattern <> ''
		GROUP BY pattern, type
		ORDER BY frequency DESC, pattern ASC
		LIMIT 10`,
		since,
	)
	if err != nil {
		return fmt.Errorf("querying top patterns: %w", err)
	}
	defer rows.Close()

	fmt.Printf("\nTop patterns\n")
	fmt.Printf("%-20s %-8s %10s %12s\n", "PATTERN", "TYPE", "FREQUENCY", "IMPACT")

	for rows.Next() {
		var pattern, karmaType string
		var frequency int64
		var impact float64
		if err := rows.Scan(&pattern, &karmaType, &frequency, &impact); err != nil {
			return fmt.Errorf("scanning pattern row: %w", err)
		}
		fmt.Printf("%-20s %-8s %10d %12.1f\n", pattern, karmaType, frequency, impact)
	}
	return rows.Err()
}
