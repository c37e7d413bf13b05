package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"usdt-ledger/internal/app"
	"usdt-ledger/internal/config"
	"usdt-ledger/internal/ledger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// stdin is shared so piped answers are not lost between prompts.
var stdin = bufio.NewReader(os.Stdin)

// loadConfig reads the config file from the default location.
func loadConfig() (*config.Config, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(paths.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an App. The caller must defer
// finish(a, &err).
// operation identifies the CLI command being run (e.g. "AddTransaction").
func newApp(cmd *cobra.Command, operation string) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.New(cmd.Context(), cfg, app.Options{Operation: operation, Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// finish records the command outcome in the log and closes the app.
func finish(a *app.App, err *error) {
	a.Fail(*err)
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// login authenticates the --user flag (or USDT_USER) with the credential
// from USDT_PASSWORD or a prompt.
func login(cmd *cobra.Command, a *app.App) (ledger.ActingUser, error) {
	username, _ := cmd.Flags().GetString("user")
	if username == "" {
		username = os.Getenv("USDT_USER")
	}
	if username == "" {
		return ledger.ActingUser{}, fmt.Errorf("no user given: pass --user or set USDT_USER")
	}

	credential, err := readSecret("USDT_PASSWORD", fmt.Sprintf("Password for %s", username))
	if err != nil {
		return ledger.ActingUser{}, err
	}
	return a.Login(cmd.Context(), username, credential)
}

// openSession logs in and selects the --ledger flag (or USDT_LEDGER) with
// the secret from USDT_LEDGER_SECRET or a prompt.
func openSession(cmd *cobra.Command, a *app.App) (*ledger.Session, error) {
	actor, err := login(cmd, a)
	if err != nil {
		return nil, err
	}

	ref, _ := cmd.Flags().GetString("ledger")
	if ref == "" {
		ref = os.Getenv("USDT_LEDGER")
	}
	if ref == "" {
		return nil, fmt.Errorf("no ledger given: pass --ledger or set USDT_LEDGER")
	}

	secret, err := readSecret("USDT_LEDGER_SECRET", fmt.Sprintf("Secret for ledger %s", ref))
	if err != nil {
		return nil, err
	}
	return a.Open(cmd.Context(), actor, ref, secret)
}

// readSecret returns envVar if set, otherwise prompts without echo. When
// stdin is not a terminal a single line is read from it.
func readSecret(envVar, label string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading %s from stdin: %w", strings.ToLower(label), err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return string(b), nil
}

// confirm asks a yes/no question unless --yes was given.
func confirm(cmd *cobra.Command, question string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	line, _ := stdin.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

var rootCmd = &cobra.Command{
	Use:           "usdt",
	Short:         "USDT trading ledger",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringP("user", "u", "", "Acting username (default $USDT_USER)")
	rootCmd.PersistentFlags().StringP("ledger", "l", "", "Ledger id or name (default $USDT_LEDGER)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Write debug records to the log")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(backupCmd)
}
