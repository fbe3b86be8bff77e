package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/arklim/petclub-iam/internal/infra/app"
	"github.com/arklim/petclub-iam/internal/infra/config"
	"github.com/arklim/petclub-iam/internal/infra/database"
	"github.com/arklim/petclub-iam/internal/infra/logger"
	"github.com/arklim/petclub-iam/internal/infra/security"
)

func main() {
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:          "petclub-iam",
		Short:        "Pet Club identity and session service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (yaml, json or toml); env vars override it")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			return application.Run(ctx)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logger.New(cfg.App.Env)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			pool, err := database.NewPostgresPool(cmd.Context(), cfg.Postgres, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			return database.Migrate(cmd.Context(), pool, log)
		},
	}

	var (
		keyDir  string
		keyID   string
		keyBits int
	)
	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA signing key in the key directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := security.WriteKeyPair(keyDir, keyID, keyBits)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	keygenCmd.Flags().StringVar(&keyDir, "dir", "./secrets", "directory the key is written to (jwt.key_directory)")
	keygenCmd.Flags().StringVar(&keyID, "kid", "", "key id; becomes the file name and the JWT kid header")
	keygenCmd.Flags().IntVar(&keyBits, "bits", 2048, "RSA key size")
	_ = keygenCmd.MarkFlagRequired("kid")

	root.AddCommand(serveCmd, migrateCmd, keygenCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
