package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nostrvine/backend/internal/analytics"
	"github.com/nostrvine/backend/internal/config"
	"github.com/nostrvine/backend/internal/database"
	"github.com/nostrvine/backend/internal/prefetch"
	"github.com/nostrvine/backend/internal/util"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarize recorded prefetch outcomes",
	Long: `Aggregate prefetch outcomes and feedback straight from the database.
Uses DATABASE_URL (or the POSTGRES_* variables) unless --sqlite is given.

Examples:
  prefetchctl analytics --hours 48
  prefetchctl analytics --session abc --sqlite ./prefetch.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		hours, _ := cmd.Flags().GetInt("hours")
		sqlitePath, _ := cmd.Flags().GetString("sqlite")

		db, closeDB, err := openAnalyticsDB(sqlitePath)
		if err != nil {
			return err
		}
		defer closeDB()

		return runAnalytics(cmd.Context(), cmd.OutOrStdout(), analytics.NewGormStore(db), session, hours)
	},
}

func init() {
	analyticsCmd.Flags().String("session", "", "Only include this session")
	analyticsCmd.Flags().Int("hours", 24, "Window size in hours (1-168)")
	analyticsCmd.Flags().String("sqlite", "", "Read from a SQLite file instead of postgres")
}

func openAnalyticsDB(sqlitePath string) (*gorm.DB, func(), error) {
	if sqlitePath != "" {
		db, err := database.OpenSQLite(sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := database.Initialize(cfg.Database.URL, false); err != nil {
		return nil, nil, err
	}
	return database.DB, func() { _ = database.Close() }, nil
}

func runAnalytics(ctx context.Context, w io.Writer, store analytics.Store, session string, hours int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	hours = util.ClampInt(hours, 1, 7*24)

	summary, err := store.Summarize(ctx, analytics.Filter{
		SessionID: session,
		Since:     time.Now().UTC().Add(-time.Duration(hours) * time.Hour),
	})
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	scope := "all sessions"
	if session != "" {
		scope = "session " + session
	}
	fmt.Fprintf(w, "\nPrefetch analytics (%s, last %dh)\n", scope, hours)
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "Recommendations:   %d (%d empty)\n", summary.TotalRecommendations, summary.EmptyRecommendations)
	fmt.Fprintf(w, "Prefetched videos: %d\n", summary.TotalPrefetchedVideos)
	fmt.Fprintf(w, "Avg base count:    %.2f\n", summary.AverageBaseCount)
	fmt.Fprintf(w, "Avg size:          %.2f MB\n", summary.AverageEstimatedSizeMB)
	for _, t := range prefetch.NetworkTypes() {
		fmt.Fprintf(w, "  %-7s          %d\n", t.String()+":", summary.ByNetworkType[t.String()])
	}
	fmt.Fprintf(w, "Feedback reports:  %d\n", summary.FeedbackReports)
	fmt.Fprintf(w, "Hit rate:          %.1f%% (%d hits)\n\n", summary.HitRate*100, summary.Hits)
	return nil
}
