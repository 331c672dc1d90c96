// Package cli implements mastercomctl, the operator command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mastercom/internal/platform/config"
)

type options struct {
	jsonOutput bool
	cfg        config.Config
}

// NewRootCommand builds the command tree around cfg.
func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &options{cfg: cfg}
	root := &cobra.Command{
		Use:   "mastercomctl",
		Short: "Operator tooling for the MasterCom deletion service",
		Long: `mastercomctl mints development tokens, applies database migrations and
triggers reconciliation of approved deletion requests whose record survived.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	root.AddCommand(
		newTokenCommand(opts),
		newMigrateCommand(opts),
		newReconcileCommand(opts),
	)
	return root
}

// Execute runs the CLI with configuration from the environment.
func Execute() {
	if err := NewRootCommand(config.FromEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func (o *options) outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
