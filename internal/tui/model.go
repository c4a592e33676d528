// Package tui is a terminal dashboard for a running gridwatch server.
package tui

import (
	"context"
	"log"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nchanged/gridwatch/internal/app"
	"github.com/nchanged/gridwatch/internal/buffer"
	"github.com/nchanged/gridwatch/internal/demand"
	"github.com/nchanged/gridwatch/internal/format"
	"github.com/nchanged/gridwatch/internal/ingest"
	"github.com/nchanged/gridwatch/internal/solar"
)

const topSites = 6

// replayWindow is how long an unchanged summary is taken for the broker
// replaying its last payload after a reconnect.
const replayWindow = time.Minute

type sortMode int

const (
	sortGeneration sortMode = iota
	sortToday
	sortPercent
)

func (s sortMode) String() string {
	switch s {
	case sortToday:
		return "today"
	case sortPercent:
		return "% of max"
	default:
		return "generation"
	}
}

func (s sortMode) next() sortMode {
	return (s + 1) % 3
}

// SummaryMsg delivers a live summary to the UI.
type SummaryMsg solar.Summary

// WaitForSummary returns a tea.Cmd that waits for the next summary.
// Returns tea.Quit if the channel is closed.
func WaitForSummary(ch <-chan solar.Summary) tea.Cmd {
	return func() tea.Msg {
		sum, ok := <-ch
		if !ok {
			return tea.Quit()
		}
		return SummaryMsg(sum)
	}
}

// Model is the root bubbletea model of the dashboard.
type Model struct {
	width  int
	height int

	app     *app.Context
	summary solar.Summary
	pushed  time.Time
	live    bool
	sort    sortMode
	table   table.Model

	updates <-chan solar.Summary
	now     func() time.Time
}

func New(appCtx *app.Context, updates <-chan solar.Summary) Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithHeight(topSites+1),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(colorSun).Bold(true)
	styles.Selected = styles.Cell
	t.SetStyles(styles)

	return Model{
		app:     appCtx,
		table:   t,
		updates: updates,
		now:     time.Now,
	}
}

func columns(width int) []table.Column {
	site := width - 44
	if site < 12 {
		site = 12
	}
	return []table.Column{
		{Title: "Site", Width: site},
		{Title: "Now", Width: 12},
		{Title: "Today", Width: 14},
		{Title: "% of max", Width: 10},
	}
}

func (m Model) Init() tea.Cmd {
	return WaitForSummary(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width - 2))
		return m, nil

	case SummaryMsg:
		now := m.now()
		sum := solar.Summary(msg)
		rolled := m.app.Rollover(now)
		replay := m.live && !rolled && now.Sub(m.pushed) < replayWindow && reflect.DeepEqual(sum, m.summary)
		m.summary = sum
		m.live = true
		if !replay {
			m.app.Combined().Push(buffer.Sample{
				X: float64(demand.ReferenceDay(now).UnixMilli()),
				Y: m.summary.CurrentW / 1e6,
			})
			m.pushed = now
		}
		m.table.SetRows(m.rows())
		return m, WaitForSummary(m.updates)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			m.sort = m.sort.next()
			m.table.SetRows(m.rows())
		}
	}
	return m, nil
}

func percentOfMax(s solar.Site) float64 {
	if s.Max <= 0 {
		return 0
	}
	return s.Snapshot / s.Max * 100
}

// rows returns the top sites under the current sort order.
func (m Model) rows() []table.Row {
	sites := make([]solar.Site, len(m.summary.Sites))
	copy(sites, m.summary.Sites)

	key := func(s solar.Site) float64 { return s.Snapshot }
	switch m.sort {
	case sortToday:
		key = func(s solar.Site) float64 { return s.Today }
	case sortPercent:
		key = percentOfMax
	}
	sort.SliceStable(sites, func(i, j int) bool { return key(sites[i]) > key(sites[j]) })

	if len(sites) > topSites {
		sites = sites[:topSites]
	}
	rows := make([]table.Row, len(sites))
	for i, s := range sites {
		rows[i] = table.Row{
			s.Name,
			format.Watts(s.Snapshot, false),
			format.Watts(s.Today*1000, true),
			format.Percent(percentOfMax(s)),
		}
	}
	return rows
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := m.renderHeader()
	stats := m.renderStats()
	sites := stylePanel.Render(m.table.View())
	footer := m.renderFooter()

	used := lipgloss.Height(header) + lipgloss.Height(stats) + lipgloss.Height(sites) + lipgloss.Height(footer) + 2
	plotHeight := m.height - used
	plot := ""
	if plotHeight >= 3 {
		plot = stylePanel.Render(renderPlot(m.app.Combined().Values(), demand.ReferenceDay(m.app.Day()), m.width-2, plotHeight))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, stats, sites, plot, footer)
}

func (m Model) renderHeader() string {
	state := styleStale.Render("waiting for data")
	if m.live {
		state = styleLive.Render("live")
	}
	return styleTitle.Render("gridwatch") + " " + state
}

func stat(label, value string) string {
	return styleStatLabel.Render(label+" ") + styleStatValue.Render(value)
}

func (m Model) renderStats() string {
	sum := m.summary
	totals := strings.Join([]string{
		stat("Now", format.Watts(sum.CurrentW, false)),
		stat("Today", format.Watts(sum.DayKWh*1000, true)),
		stat("Week", format.Watts(sum.WeekKWh*1000, true)),
		stat("Year", format.Watts(sum.YearKWh*1000, true)),
		stat("All time", format.Watts(sum.TotalKWh*1000, true)),
	}, "   ")

	avg, err := demand.At(m.now())
	if err != nil {
		return totals
	}
	share := 0.0
	if avg > 0 {
		share = sum.CurrentW / 1e6 / avg * 100
	}
	grid := strings.Join([]string{
		stat("Average demand", format.Watts(avg*1e6, false)),
		stat("Solar share", format.Percent(share)),
	}, "   ")
	return totals + "\n" + grid
}

func (m Model) renderFooter() string {
	return strings.Join([]string{
		styleFooterKey.Render("s") + styleFooter.Render(" sort: "+m.sort.String()),
		styleFooterKey.Render("q") + styleFooter.Render(" quit"),
	}, "  ")
}

// Run seeds a local buffer from the server, then shows the dashboard until
// the user quits.
func Run(ctx context.Context, serverURL string, capacity int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	now := time.Now()
	appCtx, err := app.NewContext(capacity, now)
	if err != nil {
		return err
	}

	client := NewClient(serverURL)
	series, err := client.Today(ctx)
	if err != nil {
		log.Printf("Failed to load today's generation: %v", err)
	} else if err := ingest.SeedBuffer(appCtx.Combined(), series, now); err != nil {
		log.Printf("Failed to seed buffer: %v", err)
	}

	updates := make(chan solar.Summary, 8)
	go stream(ctx, client, updates)

	p := tea.NewProgram(New(appCtx, updates), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// stream keeps the live feed open, reconnecting until ctx is done.
func stream(ctx context.Context, client *Client, out chan<- solar.Summary) {
	defer close(out)

	backoff := time.Second
	for {
		err := client.Stream(ctx, func(sum solar.Summary) {
			backoff = time.Second
			select {
			case out <- sum:
			case <-ctx.Done():
			}
		})
		if ctx.Err() != nil {
			return
		}
		log.Printf("Live stream ended: %v, retrying in %s", err, backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}
