package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		slog.Info("Migration completed successfully!", slog.String("type", "db"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCMD)
}
