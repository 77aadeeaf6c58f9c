package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quicktypofix/quicktypofix/internal/config"
	"github.com/quicktypofix/quicktypofix/internal/correction"
	"github.com/quicktypofix/quicktypofix/internal/credential"
	"github.com/quicktypofix/quicktypofix/internal/editor"
	"github.com/quicktypofix/quicktypofix/internal/notify"
	"github.com/quicktypofix/quicktypofix/internal/session"
	"github.com/quicktypofix/quicktypofix/internal/surface"
	"github.com/quicktypofix/quicktypofix/internal/termsurface"
	"github.com/quicktypofix/quicktypofix/internal/typofix"
)

// Seams for tests.
var (
	runEditor = editor.Run

	openCredentials = func() (credential.Store, error) {
		path, err := credential.DefaultFilePath()
		if err != nil {
			return nil, err
		}
		return credential.NewFile(path), nil
	}

	newService = func(cfg config.Config, keys credential.Store) correction.Service {
		return correction.NewClient(correction.Settings{Endpoint: cfg.Endpoint, Model: cfg.Model, SystemPrompt: cfg.SystemPrompt}, keys)
	}

	newConfigLoader = func() *config.Loader { return config.NewLoader("") }

	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

func exactArgs(n int, what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		switch {
		case len(args) < n:
			return usagef("missing %s", what)
		case len(args) > n:
			return usagef("unexpected argument %q", args[n])
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("unexpected argument %q", args[0])
	}
	return nil
}

func newRootCommand(std stdio) *cobra.Command {
	root := &cobra.Command{
		Use:           "quicktypofix",
		Short:         "quicktypofix fixes typos in a line of text with a language model and highlights what changed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err: err}
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the quicktypofix version.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeStringln(std.out, Version)
		},
	}

	root.AddCommand(newFixCommand(std), newEditCommand(std), newKeyCommand(std), newConfigCommand(std), versionCmd)
	return root
}

func writeStringln(w io.Writer, s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := fmt.Fprint(w, s)
	return err
}

// configFunc loads configuration for each run, applying a dwell override if positive.
func configFunc(dwell time.Duration) func() (config.Config, error) {
	return func() (config.Config, error) {
		cfg, err := newConfigLoader().Load()
		if err != nil {
			return config.Config{}, err
		}
		if dwell > 0 {
			cfg.Dwell = dwell
			cfg.DwellMillis = int(dwell / time.Millisecond)
			cfg.Provenance[config.KeyDwell] = config.Provenance{SourceType: "flag", SourceIdentifier: "--dwell"}
		}
		return cfg, nil
	}
}

func serviceFunc(keys credential.Store) func(config.Config) correction.Service {
	return func(cfg config.Config) correction.Service {
		return newService(cfg, keys)
	}
}

func newFixCommand(std stdio) *cobra.Command {
	var (
		line    int
		dwell   time.Duration
		dryRun  bool
		markers bool
	)
	cmd := &cobra.Command{
		Use:   "fix FILE --line N",
		Short: "Correct one line of FILE, printing each highlighted frame.",
		Long: "Correct one line of FILE. The corrected line first appears merged with the original (removed and added characters side by side), then as the final\n" +
			"text with additions highlighted. FILE is rewritten unless --dry-run is given.",
		Args: exactArgs(1, "FILE"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if line < 1 {
				return usagef("--line must be a positive line number")
			}
			if dwell < 0 {
				return usagef("--dwell must not be negative")
			}
			keys, err := openCredentials()
			if err != nil {
				return err
			}
			return runFix(cmd.Context(), std, fixParams{
				path:    args[0],
				line:    line - 1,
				dryRun:  dryRun,
				markers: markers,
				fixer: &typofix.Fixer{
					Session:    session.New(),
					Notifier:   notify.NewWriter(std.err),
					LoadConfig: configFunc(dwell),
					NewService: serviceFunc(keys),
				},
			})
		},
	}
	cmd.Flags().IntVarP(&line, "line", "l", 0, "1-based line number to correct (required)")
	cmd.Flags().DurationVar(&dwell, "dwell", 0, "how long each highlight stays visible (overrides highlightTimeout)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not write the corrected text back to FILE")
	cmd.Flags().BoolVar(&markers, "markers", false, "print +/- marker lines instead of colored backgrounds")
	return cmd
}

type fixParams struct {
	path    string
	line    int
	dryRun  bool
	markers bool
	fixer   *typofix.Fixer
}

func runFix(ctx context.Context, std stdio, p fixParams) error {
	info, err := os.Stat(p.path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	original := string(data)

	mode := termsurface.ModeAuto
	if p.markers {
		mode = termsurface.ModeMarkers
	}
	ts := termsurface.New(surface.NewBuffer(p.path, original), std.out, termsurface.Options{Mode: mode})
	if p.line >= ts.LineCount() {
		return usagef("--line %d is past the end of %s (%d lines)", p.line+1, p.path, ts.LineCount())
	}
	ts.Watch(p.line)

	out := p.fixer.Run(ctx, ts, p.line)
	if out.Flash != nil {
		// Let the additions highlight show (and clear) before exiting.
		_ = out.Flash.Wait(ctx)
	}

	if text := ts.Text(); text != original && !p.dryRun {
		if err := os.WriteFile(p.path, []byte(text), info.Mode().Perm()); err != nil {
			return fmt.Errorf("write %s: %w", p.path, err)
		}
	}
	return out.Err
}

func newEditCommand(std stdio) *cobra.Command {
	return &cobra.Command{
		Use:   "edit [FILE]",
		Short: "Open FILE in an interactive editor (ctrl+t fixes the cursor line).",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usagef("unexpected argument %q", args[1])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := editor.Options{LoadConfig: configFunc(0)}
			if len(args) == 1 {
				opts.Path = args[0]
				data, err := os.ReadFile(opts.Path)
				if err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				opts.Text = string(data)
			}
			keys, err := openCredentials()
			if err != nil {
				return err
			}
			opts.NewService = serviceFunc(keys)
			return runEditor(cmd.Context(), opts)
		},
	}
}

func newKeyCommand(std stdio) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Store an API key (read from the terminal without echo, or from stdin).",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := openCredentials()
			if err != nil {
				return err
			}
			key, err := readAPIKey(std)
			if err != nil {
				return err
			}
			sink := notify.NewWriter(std.out)
			if key == "" {
				notify.Warnf(sink, "No API key provided.")
				return nil
			}
			if err := keys.Store(credential.APIKeyID, key); err != nil {
				return fmt.Errorf("store API key: %w", err)
			}
			notify.Infof(sink, "API key has been securely stored.")
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored API key.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := openCredentials()
			if err != nil {
				return err
			}
			if err := keys.Delete(credential.APIKeyID); err != nil {
				return fmt.Errorf("clear API key: %w", err)
			}
			notify.Infof(notify.NewWriter(std.out), "Stored API key has been cleared.")
			return nil
		},
	}

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Show a masked preview of the stored API key.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := openCredentials()
			if err != nil {
				return err
			}
			key, err := keys.Retrieve(credential.APIKeyID)
			if err != nil && !errors.Is(err, credential.ErrNotFound) {
				return err
			}
			return writeStringln(std.out, "API Key: "+credential.Preview(key, err == nil))
		},
	}

	keyCmd.AddCommand(registerCmd, clearCmd, previewCmd)
	return keyCmd
}

// readAPIKey prompts without echo when stdin is a terminal; otherwise it reads the first line of stdin.
func readAPIKey(std stdio) (string, error) {
	if f, ok := std.in.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(std.err, "Enter your API key: ")
		b, err := readPassword(int(f.Fd()))
		fmt.Fprintln(std.err)
		if err != nil {
			return "", fmt.Errorf("read API key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(std.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
