package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/config"
	"github.com/unclebandit/clickreward-backend/internal/db"
	"github.com/unclebandit/clickreward-backend/internal/logger"
)

var (
	migrationsDir string
	seedDir       string
)

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Apply schema migrations and seed data",
	Long:  `Runs every migrations/*.sql file and then every seed/*.sql file, each in its own transaction, in file name order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), migrationsDir, seedDir)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), migrationsDir)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load seed data only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), seedDir)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migrations", "migrations", "Directory holding schema migrations")
	rootCmd.PersistentFlags().StringVar(&seedDir, "seed", "seed", "Directory holding seed data")
	rootCmd.AddCommand(migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dirs ...string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log).Named("seeder")
	defer log.Sync()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, dir := range dirs {
		files, err := sqlFiles(dir)
		if err != nil {
			return err
		}
		if err := applyFiles(ctx, conn, files, log); err != nil {
			return err
		}
	}
	log.Info("database ready")
	return nil
}

// sqlFiles lists dir/*.sql sorted by name. A missing directory yields nothing.
func sqlFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func applyFiles(ctx context.Context, conn *sql.DB, files []string, log *zap.Logger) error {
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		err = db.WithTx(ctx, conn, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, string(content))
			return err
		})
		if err != nil {
			return fmt.Errorf("apply %s: %w", file, err)
		}
		log.Info("applied", zap.String("file", file))
	}
	return nil
}
