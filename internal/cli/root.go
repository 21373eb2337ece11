// Package cli implements the continuity CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jpearleverett/story-continuity/internal/config"
	"github.com/jpearleverett/story-continuity/internal/logging"
	"github.com/jpearleverett/story-continuity/internal/provider"
	"github.com/jpearleverett/story-continuity/internal/session"
	"github.com/jpearleverett/story-continuity/internal/store"
)

var (
	dbPath     string
	sessionDir string
	configPath string
	formatFlag string
	verbose    bool
	cfg        *config.Config
	logger     *zap.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "continuity",
	Short: "Narrative continuity engine for generated detective stories",
	Long: `Tracks narrative threads, plans and adapts the story arc, and derives
generation cache keys for a choice-driven 12-chapter mystery.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(getConfigPath())
		if err != nil {
			return err
		}
		if err := cfg.ValidateLimits(); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Arc database path (default: $CONTINUITY_DB or ~/.story-continuity/arcs.db)")
	RootCmd.PersistentFlags().StringVar(&sessionDir, "sessions", "", "Session directory (default: $CONTINUITY_SESSIONS or ~/.story-continuity/sessions)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.story-continuity/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".story-continuity", "config.yaml")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.Store.DatabasePath
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func sessionStore() *session.FileStore {
	if sessionDir != "" {
		return session.NewFileStore(sessionDir)
	}
	return session.NewFileStore(cfg.Store.SessionDir)
}

func loadSession(cmd *cobra.Command) *session.Session {
	id, _ := cmd.Flags().GetString("session")
	s, err := sessionStore().Load(id)
	if err != nil {
		exitErr("load session", err)
	}
	return s
}

// newEngine wires an engine over st, which may be nil for commands that never
// touch stored arcs.
func newEngine(cmd *cobra.Command, st *store.SQLiteStore, withProvider bool) *session.Engine {
	var gen provider.Generator
	if withProvider {
		if err := cfg.Validate(); err != nil {
			exitErr("config", err)
		}
		var err error
		gen, err = provider.NewFromConfig(cmd.Context(), cfg.Provider, logger.Named("provider"))
		if err != nil {
			exitErr("provider", err)
		}
	}
	if st == nil {
		return session.NewEngine(cfg, nil, gen, logger)
	}
	return session.NewEngine(cfg, st, gen, logger)
}

func addSessionFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("session", "s", "", "Session id (required)")
	cmd.MarkFlagRequired("session")
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func zapSession(id string) zap.Field {
	return zap.String("session", id)
}
