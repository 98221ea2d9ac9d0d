package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/embedded-store/internal/config"
	"github.com/example/embedded-store/internal/logging"
	"github.com/example/embedded-store/internal/persistence/sqlite"
	"github.com/example/embedded-store/internal/persistence/sqlite/schema"
)

var (
	dbPath  string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storectl",
		Short: "Embedded store maintenance CLI",
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path (overrides STORE_DB_PATH)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "operation timeout")

	// db command group
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance commands",
	}

	dbStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the schema catalog",
		RunE:  runDBStatus,
	}
	dbVerifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check catalog records against physical tables",
		RunE:  runDBVerify,
	}
	dbBackupsCmd := &cobra.Command{
		Use:   "backups",
		Short: "List relocation backups next to the database file",
		RunE:  runDBBackups,
	}

	dbCmd.AddCommand(dbStatusCmd, dbVerifyCmd, dbBackupsCmd)
	rootCmd.AddCommand(dbCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (context.Context, context.CancelFunc, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, config.Config{}, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	ctx := logging.ContextWithLogger(context.Background(), logger)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, cfg, nil
}

func openHandle(ctx context.Context, cfg config.Config) (*sqlite.Handle, error) {
	return sqlite.Open(cfg.DatabasePath, sqlite.Options{
		Credential:  cfg.Credential,
		BusyTimeout: cfg.BusyTimeout,
		JournalMode: cfg.JournalMode,
		Logger:      logging.FromContext(ctx),
	})
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	handle, err := openHandle(ctx, cfg)
	if err != nil {
		return err
	}
	defer handle.Close()

	catalog := schema.NewCatalog()
	return handle.WithConnection(ctx, sqlite.ReadOnly, func(c *sqlite.Conn) error {
		found, err := schema.TableExists(ctx, c, schema.CatalogName)
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("no schema catalog: database has never been reconciled")
			return nil
		}

		records, err := catalog.Records(ctx, c)
		if err != nil {
			return err
		}
		fmt.Printf("%-40s %s\n", "TABLE", "VERSION")
		for _, r := range records {
			fmt.Printf("%-40s %d\n", r.Name, r.Version)
		}
		return nil
	}).Err()
}

func runDBVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	handle, err := openHandle(ctx, cfg)
	if err != nil {
		return err
	}
	defer handle.Close()

	logger := logging.FromContext(ctx)
	catalog := schema.NewCatalog()
	missing := 0

	err = handle.WithConnection(ctx, sqlite.ReadOnly, func(c *sqlite.Conn) error {
		records, err := catalog.Records(ctx, c)
		if err != nil {
			return err
		}
		for _, r := range records {
			found, err := schema.TableExists(ctx, c, r.Name)
			if err != nil {
				return err
			}
			if !found {
				missing++
				logger.Error("catalog records a table that does not exist",
					"table", r.Name, "version", r.Version)
			}
		}
		return nil
	}).Err()
	if err != nil {
		return err
	}

	if missing > 0 {
		return fmt.Errorf("%d catalog record(s) without a physical table", missing)
	}
	fmt.Println("catalog and physical tables agree")
	return nil
}

func runDBBackups(cmd *cobra.Command, args []string) error {
	_, cancel, cfg, err := setup()
	if err != nil {
		return err
	}
	defer cancel()

	matches, err := filepath.Glob(cfg.DatabasePath + ".corrupt-*")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("no relocation backups found")
		return nil
	}

	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		fmt.Printf("%s\t%d bytes\t%s\n", path, info.Size(), info.ModTime().Format(time.RFC3339))
	}
	return nil
}
