package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/quicktypofix/quicktypofix/internal/config"
)

func newConfigCommand(std stdio) *cobra.Command {
	var showDefaults, showFiles bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as JSON, including where each value came from.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := newConfigLoader()
			if showFiles {
				for _, f := range loader.SourceFiles() {
					if err := writeStringln(std.err, "config file: "+f); err != nil {
						return err
					}
				}
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			if err := writeConfigJSON(std.out, cfg); err != nil {
				return err
			}
			if showDefaults {
				for _, msg := range cfg.DefaultNotices() {
					if err := writeStringln(std.err, msg); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDefaults, "defaults", false, "also warn about the endpoint, model and prompt when they fell back to defaults (on stderr)")
	cmd.Flags().BoolVar(&showFiles, "files", false, "also list the config files consulted, lowest priority first (on stderr)")
	return cmd
}

func writeConfigJSON(w io.Writer, cfg config.Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return nil
}
