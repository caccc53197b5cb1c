// Package configcmder provides the config command for managing persistent
// bounder configuration stored in the .bounder/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bounder/pkg/cliui"
	"github.com/papercomputeco/bounder/pkg/config"
)

const configLongDesc string = `Manage persistent bounder configuration.

Configuration is stored as config.toml in the .bounder/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  source.url, source.user,
  server.listen, server.path,
  relay.queue_size, relay.retry_delay, relay.read_buffer,
  metrics.enabled, metrics.path,
  events.brokers, events.topic,
  client.target

Use subcommands to get, set, or list configuration values:
  bounder config set <key> <value>    Set a configuration value
  bounder config get <key>            Get a configuration value
  bounder config list                 List all configuration values

Examples:
  bounder config set source.url http://camera.local/video
  bounder config set relay.retry_delay 5s
  bounder config get server.path
  bounder config list`

const configShortDesc string = "Manage persistent bounder configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func printTarget(w io.Writer, target string) {
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

// displayValue masks the password half of secret values such as
// "user:password" credentials.
func displayValue(key, value string) string {
	if value == "" || !config.IsSecretConfigKey(key) {
		return value
	}
	if user, _, ok := strings.Cut(value, ":"); ok {
		return user + ":xxxxx"
	}
	return "xxxxx"
}

func keysCompletion(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
