// Package cli - команды клиента: демон синхронизации и разовые операции над локальным состоянием.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/statesync/internal/client/iocli"
	"github.com/iudanet/statesync/internal/config"
)

// passphraseEnv - переменная окружения с паролем локального хранилища
const passphraseEnv = "STATESYNC_PASSPHRASE"

// Options - глобальные флаги; непустые значения перекрывают конфигурацию
type Options struct {
	ConfigPath     string
	ServerURL      string
	DBPath         string
	StateDir       string
	Token          string
	LogLevel       string
	PassphraseFile string
}

// Cli держит загруженную конфигурацию и общие зависимости команд
type Cli struct {
	cfg    *config.ClientConfig
	io     iocli.IO
	logger *slog.Logger
	opts   Options
}

// New creates a Cli writing through io. Configuration is loaded by the root command.
func New(io iocli.IO) *Cli {
	return &Cli{io: io}
}

// NewRootCommand создает корневую команду клиента
func NewRootCommand(c *Cli, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "statesync",
		Short:         "Statesync client",
		Long:          "Keeps the local game state in sync with the remote store, including while offline.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.opts.ConfigPath, "config", "", "path to YAML config file")
	flags.StringVar(&c.opts.ServerURL, "server", "", "server URL")
	flags.StringVar(&c.opts.DBPath, "db", "", "path to local database")
	flags.StringVar(&c.opts.StateDir, "state-dir", "", "directory with fragment files")
	flags.StringVar(&c.opts.Token, "token", "", "bearer token for the server")
	flags.StringVar(&c.opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&c.opts.PassphraseFile, "passphrase-file", "", "file containing the local storage passphrase")

	cmd.AddCommand(
		newRunCommand(c),
		newStatusCommand(c),
		newSaveCommand(c),
		newRestoreCommand(c),
		newSetCommand(c),
		newDeleteCommand(c),
		newDeadLettersCommand(c),
		newRequeueCommand(c),
		newResetCommand(c),
	)

	return cmd
}

func (c *Cli) loadConfig(logOut io.Writer) error {
	cfg, err := config.LoadClient(c.opts.ConfigPath)
	if err != nil {
		return err
	}

	overrides := map[*string]string{
		&cfg.ServerURL: c.opts.ServerURL,
		&cfg.DBPath:    c.opts.DBPath,
		&cfg.StateDir:  c.opts.StateDir,
		&cfg.Token:     c.opts.Token,
		&cfg.LogLevel:  c.opts.LogLevel,
	}
	for dst, v := range overrides {
		if v != "" {
			*dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = config.NewLogger(logOut, cfg.LogLevel)
	return nil
}

// getPassphrase retrieves the storage passphrase with priority:
// 1. Environment variable STATESYNC_PASSPHRASE
// 2. File given by --passphrase-file
// 3. Interactive prompt (fallback)
func (c *Cli) getPassphrase() (string, error) {
	// Priority 1: Environment variable
	if env := os.Getenv(passphraseEnv); env != "" {
		return env, nil
	}

	// Priority 2: File
	if c.opts.PassphraseFile != "" {
		content, err := os.ReadFile(c.opts.PassphraseFile)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase file: %w", err)
		}
		passphrase := strings.TrimSpace(string(content))
		if passphrase == "" {
			return "", fmt.Errorf("passphrase file is empty")
		}
		return passphrase, nil
	}

	// Priority 3: Interactive prompt
	passphrase, err := c.io.ReadPassword("Storage passphrase: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if passphrase == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	return passphrase, nil
}
