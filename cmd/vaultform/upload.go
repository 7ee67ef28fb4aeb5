package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/VaultForm/internal/config"
	"github.com/dharsanguruparan/VaultForm/internal/filetype"
	"github.com/dharsanguruparan/VaultForm/internal/form"
	"github.com/dharsanguruparan/VaultForm/internal/idgen"
	"github.com/dharsanguruparan/VaultForm/internal/logging"
	"github.com/dharsanguruparan/VaultForm/internal/notify"
	"github.com/dharsanguruparan/VaultForm/internal/upload"
)

// formValues is what the user typed, before it is applied to a session.
type formValues struct {
	Path     string
	Name     string
	Tags     string
	Expire   string
	Reminder string
}

func newUploadCmd(opts *rootOptions) *cobra.Command {
	var (
		values      formValues
		token       string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a file with its metadata",
		Example: `  vaultform upload report.pdf --name "Annual report" --tags finance,2025 --expire 31/12/2025
  vaultform upload --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(opts.configFile)
			if err != nil {
				return err
			}
			// An explicit --log-level wins over the config file.
			if !cmd.Flags().Changed("log-level") {
				logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, !opts.jsonLogs)
			}
			if token == "" {
				token = cfg.Token
			}
			if len(args) == 1 {
				values.Path = args[0]
			}

			client := upload.NewClient(cfg.UploadURL,
				upload.WithTimeout(cfg.Timeout),
				upload.WithUserAgent(cfg.UserAgent),
				upload.WithLogger(log.Logger),
			)
			session := form.NewSession(form.Options{
				IDs:       idgen.New(),
				Submitter: client,
				Tokens:    form.StaticToken(token),
				Notifier:  notify.Multi{notify.NewConsole(cmd.OutOrStdout()), notify.NewLog(log.Logger)},
			})

			if interactive {
				if err := runInteractive(&values); err != nil {
					session.Cancel()
					if errors.Is(err, huh.ErrUserAborted) {
						fmt.Fprintln(cmd.OutOrStdout(), "Upload cancelled.")
						return nil
					}
					return err
				}
			}
			if err := applyValues(session, values); err != nil {
				return err
			}

			out, err := session.Submit(cmd.Context())
			if err != nil {
				return err
			}
			if !out.Success {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&values.Name, "name", "n", "", "Display name (defaults to the file name without extension)")
	cmd.Flags().StringVarP(&values.Tags, "tags", "t", "", "Comma separated tags")
	cmd.Flags().StringVar(&values.Expire, "expire", "", "Expiration date (dd/mm/yyyy, yyyy-mm-dd or RFC 3339)")
	cmd.Flags().StringVar(&values.Reminder, "reminder", "", "Reminder date (dd/mm/yyyy, yyyy-mm-dd or RFC 3339)")
	cmd.Flags().StringVar(&token, "token", "", "API token (overrides VAULTFORM_TOKEN)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Fill in the form interactively")
	return cmd
}

// applyValues copies the typed values onto the session.
func applyValues(s *form.Session, v formValues) error {
	if v.Path != "" {
		att, err := upload.OpenFile(v.Path)
		if err != nil {
			return err
		}
		if !filetype.Accepted(att.Name) {
			log.Warn().Str("file", att.Name).Msg("file type is not in the accepted list, the server may reject it")
		}
		s.AttachFile(att)
	}
	name := strings.TrimSpace(v.Name)
	if name == "" && v.Path != "" {
		base := filepath.Base(v.Path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	s.SetFileName(name)
	s.SetTags(v.Tags)
	if err := s.SetExpireAt(v.Expire); err != nil {
		return fmt.Errorf("--expire: %w", err)
	}
	if err := s.SetReminder(v.Reminder); err != nil {
		return fmt.Errorf("--reminder: %w", err)
	}
	return nil
}

func runInteractive(v *formValues) error {
	f := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("File").
				Description("Path of the file to upload").
				Value(&v.Path).
				Validate(validatePath),
			huh.NewInput().
				Title("File name").
				Value(&v.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("file name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Tags").
				Description("Comma separated").
				Value(&v.Tags),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Expiration date").
				Placeholder("dd/mm/yyyy").
				Value(&v.Expire).
				Validate(validateDate),
			huh.NewInput().
				Title("Reminder date").
				Placeholder("dd/mm/yyyy").
				Value(&v.Reminder).
				Validate(validateDate),
		),
	)
	return f.Run()
}

func validatePath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("choose a file")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("that is a directory")
	}
	if !filetype.Accepted(path) {
		return fmt.Errorf("accepted types: %s", strings.Join(filetype.AcceptedExtensions, " "))
	}
	return nil
}

func validateDate(raw string) error {
	_, err := form.ParseDate(raw, nil)
	return err
}
