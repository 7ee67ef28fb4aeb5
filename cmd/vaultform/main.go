// Command vaultform is the upload client: it submits files with their
// metadata to the storage API and bundles a few helpers around that workflow.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/VaultForm/internal/logging"
)

// errReported marks failures that were already shown to the user.
var errReported = errors.New("reported")

type rootOptions struct {
	configFile string
	logLevel   string
	jsonLogs   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "vaultform: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "vaultform",
		Short: "Upload files to VaultForm storage",
		Long: `vaultform submits a single file together with its name, tags, expiration date and
reminder date to the storage API, and reports the result the way the upload form does.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(cmd.ErrOrStderr(), opts.logLevel, !opts.jsonLogs)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Config file (default: vaultform.yaml in ., ./config or $HOME/.vaultform)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.AddCommand(
		newUploadCmd(opts),
		newClassifyCmd(),
		newTokenCmd(opts),
		newExtractErrorCmd(),
	)
	return cmd
}
