// Package bouncmder
package bouncmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/bounder/cmd/bounder/config"
	servecmder "github.com/papercomputeco/bounder/cmd/bounder/serve"
	statuscmder "github.com/papercomputeco/bounder/cmd/bounder/status"
	versioncmder "github.com/papercomputeco/bounder/cmd/version"
)

const bounderLongDesc string = `Bounder relays a single multipart/x-mixed-replace stream, such as an
MJPEG camera feed, to any number of HTTP clients over one upstream
connection.

Run the relay using:
  bounder -i <url>           Run the relay (same as "bounder serve")
  bounder serve -i <url>     Run the relay
  bounder status             Show the state of a running relay
  bounder config             Manage persistent configuration`

const bounderShortDesc string = "Bounder - multipart stream relay"

func NewBounderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bounder",
		Short:        bounderShortDesc,
		Long:         bounderLongDesc,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.bounder or ~/.bounder)")

	servecmder.Configure(cmd)

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
