package statuscmder

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	bubbletea "github.com/charmbracelet/bubbletea"

	"github.com/papercomputeco/bounder/pkg/cliui"
	"github.com/papercomputeco/bounder/relay"
)

type statusLoadedMsg struct {
	status relay.Status
	err    error
	at     time.Time
}

type refreshMsg struct{}

// watchModel polls the relay status endpoint and redraws the status table.
type watchModel struct {
	ctx      context.Context
	target   string
	interval time.Duration

	status  *relay.Status
	err     error
	updated time.Time
}

func newWatchModel(ctx context.Context, target string, interval time.Duration) watchModel {
	return watchModel{
		ctx:      ctx,
		target:   target,
		interval: interval,
	}
}

func runWatch(ctx context.Context, w io.Writer, target string, interval time.Duration) error {
	program := bubbletea.NewProgram(newWatchModel(ctx, target, interval),
		bubbletea.WithContext(ctx),
		bubbletea.WithOutput(w),
		bubbletea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

func (m watchModel) Init() bubbletea.Cmd {
	return m.fetch()
}

func (m watchModel) fetch() bubbletea.Cmd {
	return func() bubbletea.Msg {
		st, err := fetchStatus(m.ctx, m.target)
		return statusLoadedMsg{status: st, err: err, at: time.Now()}
	}
}

func (m watchModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case statusLoadedMsg:
		m.updated = msg.at
		m.err = msg.err
		if msg.err == nil {
			st := msg.status
			m.status = &st
		}
		return m, bubbletea.Tick(m.interval, func(time.Time) bubbletea.Msg {
			return refreshMsg{}
		})
	case refreshMsg:
		return m, m.fetch()
	case bubbletea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, bubbletea.Quit
		}
	}

	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.status != nil {
		b.WriteString(renderStatus(*m.status, m.updated))
	} else if m.err == nil {
		b.WriteString("  " + cliui.DimStyle.Render("Waiting for "+m.target+"...") + "\n")
	}

	// Keep showing the last good table while the relay is unreachable.
	if m.err != nil {
		fmt.Fprintf(&b, "\n  %s %s\n", cliui.FailMark, m.err.Error())
	}

	fmt.Fprintf(&b, "\n  %s\n", cliui.DimStyle.Render(
		fmt.Sprintf("%s · every %s · q to quit", m.target, m.interval),
	))
	return b.String()
}
