package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/habitbot/habitbot/logger"
)

// logged reports how long a maintenance command took and whether it failed.
func logged(name string, run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		err := run(cmd, args)
		logger.LogCommand(name, time.Since(start), err)
		return err
	}
}

var resetStreaksCmd = &cobra.Command{
	Use:   "reset-streaks",
	Short: "Reset the streaks of users who missed a day",
	Long: `Runs the daily streak reset once, the same job the scheduler runs at
scheduler.streak_reset_at. Safe to run more than once a day.`,
	RunE: logged("reset-streaks", func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		b, err := newBot(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer b.DB.Close()
		defer b.Close()

		users, habits, err := b.Engine.DailyStreakReset(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %d user streaks and %d habit streaks\n", users, habits)
		return nil
	}),
}

var purgeActionsCmd = &cobra.Command{
	Use:   "purge-actions",
	Short: "Delete processed action ids older than progress.action_retention",
	RunE: logged("purge-actions", func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		b, err := newBot(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer b.DB.Close()
		defer b.Close()

		n, err := b.Engine.PurgeProcessedActions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d processed actions\n", n)
		return nil
	}),
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a snapshot of all progress data to object storage",
	RunE: logged("backup", func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		if !cfg.Storage.Configured() {
			return fmt.Errorf("storage is not configured: set storage.bucket, storage.key and storage.secret")
		}
		b, err := newBot(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer b.DB.Close()
		defer b.Close()

		key, err := b.Backup.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded s3://%s/%s\n", cfg.Storage.Bucket, key)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(resetStreaksCmd, purgeActionsCmd, backupCmd)
}
