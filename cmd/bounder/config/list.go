package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bounder/pkg/cliui"
	"github.com/papercomputeco/bounder/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key grouped by its TOML section, with the
values from the config.toml file stored in the .bounder/ directory. Keys
missing from the file show their defaults.

Examples:
  bounder config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

type section struct {
	name string
	keys []string
}

// sections groups dotted keys by their first element, keeping key order.
func sections(keys []string) []section {
	var out []section
	for _, key := range keys {
		name, _, _ := strings.Cut(key, ".")
		if len(out) == 0 || out[len(out)-1].name != name {
			out = append(out, section{name: name})
		}
		out[len(out)-1].keys = append(out[len(out)-1].keys, key)
	}
	return out
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "Using config file: %s\n", target)
	} else {
		fmt.Fprint(w, "No config file found. Using default config.\n")
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	for _, sec := range sections(config.ValidConfigKeys()) {
		fmt.Fprintf(w, "\n%s\n", cliui.TitleStyle.Render("["+sec.name+"]"))

		width := 0
		for _, key := range sec.keys {
			width = max(width, len(key)-len(sec.name)-1)
		}

		for _, key := range sec.keys {
			value, err := config.ValueOf(cfg, key)
			if err != nil {
				return err
			}

			name := strings.TrimPrefix(key, sec.name+".")
			if value == "" {
				fmt.Fprintf(w, "  %-*s = %s\n", width, name, cliui.DimStyle.Render("<not set>"))
			} else {
				fmt.Fprintf(w, "  %-*s = %q\n", width, name, displayValue(key, value))
			}
		}
	}

	return nil
}
