package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"usdt-ledger/internal/app"
	"usdt-ledger/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, paths.Home)
		cfg.Timezone, _ = cmd.Flags().GetString("timezone")
		if _, err := cfg.Location(); err != nil {
			return err
		}

		if err := config.Init(paths.ConfigFile, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigFile)
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", paths.Home)
		fmt.Println("Next: usdt db migrate")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(paths.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigFile)
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Timezone:    %s\n", orDefault(cfg.Timezone, "Local"))
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:       %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Encryption:  %s\n", orDefault(cfg.Encryption.Type, "none"))
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the evidence encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		passphrase, err := readSecret("USDT_KEY_PASSPHRASE", "New key passphrase")
		if err != nil {
			return err
		}
		again, err := readSecret("USDT_KEY_PASSPHRASE", "Repeat passphrase")
		if err != nil {
			return err
		}
		if passphrase != again {
			return fmt.Errorf("passphrases do not match")
		}

		if err := app.SetupKeys(cfg, passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

var configVaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Check the configured vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, "ValidateVault")
		if err != nil {
			return err
		}
		defer finish(a, &err)

		if err := a.ValidateVault(cmd.Context()); err != nil {
			return fmt.Errorf("vault check failed: %w", err)
		}
		fmt.Println("Vault OK")
		return nil
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date")
		return nil
	},
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("timezone", "", "IANA time zone date keys are derived in (default Local)")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configVaultCmd)

	dbCmd.AddCommand(dbMigrateCmd)
}
