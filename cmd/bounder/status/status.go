// Package statuscmder provides the status command for inspecting a running
// relay.
package statuscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/bounder/pkg/cliui"
	"github.com/papercomputeco/bounder/pkg/config"
	"github.com/papercomputeco/bounder/pkg/utils"
	"github.com/papercomputeco/bounder/relay"
)

const statusLongDesc string = `Show the state of a running relay.

Queries the /status endpoint of the relay at --target (client.target in the
config file) and prints the upstream connection state, the active boundary
and the number of connected clients.

With --watch the table refreshes every --interval until q or ctrl+c is
pressed.

Examples:
  bounder status
  bounder status -t http://relay.local:8080
  bounder status --watch --interval 2s
  bounder status --json`

const statusShortDesc string = "Show the state of a running relay"

const requestTimeout = 5 * time.Second

type statusCommander struct {
	target   string
	json     bool
	watch    bool
	interval time.Duration
	noColor  bool
	v        *viper.Viper
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.RelayFlags, []string{config.FlagTarget})
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.target = strings.TrimRight(cmder.v.GetString("client.target"), "/")
			if cmder.noColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			if cmder.watch {
				if cmder.interval <= 0 {
					return fmt.Errorf("invalid interval %s: must be positive", cmder.interval)
				}
				return runWatch(cmd.Context(), cmd.OutOrStdout(), cmder.target, cmder.interval)
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.RelayFlags, config.FlagTarget, &cmder.target)
	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the raw status document")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep refreshing the status until interrupted")
	cmd.Flags().DurationVar(&cmder.interval, "interval", time.Second, "Refresh interval for --watch")
	cmd.Flags().BoolVar(&cmder.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (c *statusCommander) run(ctx context.Context, w io.Writer) error {
	var st relay.Status
	fetch := func() error {
		var err error
		st, err = fetchStatus(ctx, c.target)
		return err
	}

	if c.json {
		if err := fetch(); err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	if err := cliui.Step(w, "Querying "+c.target, fetch); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprint(w, renderStatus(st, time.Now()))
	return nil
}

func fetchStatus(ctx context.Context, target string) (relay.Status, error) {
	var st relay.Status

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+"/status", nil)
	if err != nil {
		return st, fmt.Errorf("building status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, fmt.Errorf("querying relay at %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("relay at %s returned %s", target, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decoding status: %w", err)
	}
	return st, nil
}

func renderStatus(st relay.Status, now time.Time) string {
	up := st.Upstream

	httpStatus := "-"
	if up.HTTPStatus != 0 {
		httpStatus = strconv.Itoa(up.HTTPStatus)
	}

	connected := "never"
	if up.LastConnected != nil {
		connected = cliui.FormatDuration(now.Sub(*up.LastConnected).Round(time.Second)) + " ago"
	}

	rows := []cliui.KV{
		{Key: "path", Value: st.Path},
		{Key: "consumers", Value: strconv.Itoa(st.Consumers)},
		{Key: "upstream", Value: up.URL},
		{Key: "state", Value: cliui.State(up.State)},
		{Key: "http status", Value: httpStatus},
		{Key: "content type", Value: orDash(up.ContentType)},
		{Key: "boundary", Value: orDash(up.Boundary)},
		{Key: "sessions", Value: strconv.FormatUint(up.Sessions, 10)},
		{Key: "failures", Value: strconv.FormatUint(up.Failures, 10)},
		{Key: "last connected", Value: connected},
	}
	if up.LastError != "" {
		rows = append(rows, cliui.KV{Key: "last error", Value: utils.Truncate(up.LastError, 72)})
	}

	return cliui.Table("Relay", rows)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
