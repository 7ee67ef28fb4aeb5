package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/VaultForm/internal/apierror"
	"github.com/dharsanguruparan/VaultForm/internal/config"
	"github.com/dharsanguruparan/VaultForm/internal/filetype"
	"github.com/dharsanguruparan/VaultForm/internal/signing"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Show how files would be tagged on upload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tMIME\tTYPE\tSIZE\tACCEPTED")
			var failed bool
			for _, path := range args {
				d, err := filetype.Describe(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed = true
					continue
				}
				accepted := "no"
				if filetype.Accepted(d.Name) {
					accepted = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.MimeType, filetype.Classify(d), filetype.HumanSize(d.Size), accepted)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed {
				return errReported
			}
			return nil
		},
	}
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development API token",
		Long: `token signs a bearer token with the server's signing secret
(VAULTFORM_SIGNING_SECRET or signing_secret in vaultform.yaml).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(opts.configFile)
			if err != nil {
				return err
			}
			if cfg.GeneratedSecret {
				return errors.New("no signing secret configured (set VAULTFORM_SIGNING_SECRET)")
			}
			if ttl <= 0 {
				ttl = cfg.TokenTTL
			}
			fmt.Fprintln(cmd.OutOrStdout(), signing.NewSigner(cfg.SigningSecret).Issue(subject, ttl))
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "dev", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to token_ttl)")
	return cmd
}

func newExtractErrorCmd() *cobra.Command {
	var showCode bool
	cmd := &cobra.Command{
		Use:   "extract-error <body|->",
		Short: "Print the message the client would show for an error body",
		Example: `  vaultform extract-error '{"fileName":["This field may not be blank."]}'
  curl -s ... | vaultform extract-error -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := args[0]
			if body == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				body = string(raw)
			}
			p, err := apierror.Parse([]byte(body))
			if err != nil {
				p = apierror.FromText(strings.TrimSpace(body))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, apierror.Extract(p))
			if showCode {
				if code := apierror.Code(p); code != "" {
					fmt.Fprintf(out, "code: %s\n", code)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showCode, "code", false, "Also print the error code when present")
	return cmd
}

