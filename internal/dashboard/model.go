// Package dashboard is a read-only terminal view over the store: totals and
// the latest trades across all users, refreshed on a timer.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solsniper-bot/internal/logger"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
)

const (
	DefaultRefresh = 5 * time.Second
	DefaultLimit   = 20
	fetchTimeout   = 3 * time.Second
)

// Source is the part of storage.Store the dashboard reads.
type Source interface {
	Stats(ctx context.Context) (models.Stats, error)
	RecentTrades(ctx context.Context, limit int) ([]models.Trade, error)
}

type Config struct {
	Source  Source
	Refresh time.Duration
	Limit   int
	Logger  *zap.Logger
}

// snapshotMsg carries one fetch result.
type snapshotMsg struct {
	stats  models.Stats
	trades []models.Trade
	err    error
	at     time.Time
}

type tickMsg time.Time

// Model is the bubbletea model of the dashboard.
type Model struct {
	source  Source
	refresh time.Duration
	limit   int
	logger  *zap.Logger
	keys    KeyMap

	table       table.Model
	stats       models.Stats
	err         error
	lastRefresh time.Time
	loading     bool
	width       int
}

func New(cfg Config) *Model {
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	t := table.New(
		table.WithColumns(columns()),
		table.WithFocused(true),
		table.WithHeight(cfg.Limit),
		table.WithStyles(tableStyles()),
	)

	return &Model{
		source:  cfg.Source,
		refresh: cfg.Refresh,
		limit:   cfg.Limit,
		logger:  cfg.Logger.Named("dashboard"),
		keys:    DefaultKeyMap(),
		table:   t,
		loading: true,
	}
}

func columns() []table.Column {
	return []table.Column{
		{Title: "Time (UTC)", Width: 16},
		{Title: "User", Width: 12},
		{Title: "Side", Width: 5},
		{Title: "Token", Width: 11},
		{Title: "In", Width: 16},
		{Title: "Out", Width: 16},
		{Title: "Signature", Width: 11},
	}
}

func (m *Model) Init() tea.Cmd {
	return m.fetch()
}

// fetch reads a snapshot off the UI goroutine.
func (m *Model) fetch() tea.Cmd {
	source, limit := m.source, m.limit
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		msg := snapshotMsg{at: time.Now()}
		msg.stats, msg.err = source.Stats(ctx)
		if msg.err != nil {
			return msg
		}
		msg.trades, msg.err = source.RecentTrades(ctx, limit)
		return msg
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		// header (3 + margin) + help line + table chrome
		if h := msg.Height - 8; h > 0 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, m.fetch()
		}

	case tickMsg:
		return m, m.fetch()

	case snapshotMsg:
		m.loading = false
		m.lastRefresh = msg.at
		m.err = msg.err
		if msg.err != nil {
			m.logger.Warn("Dashboard refresh failed", zap.Error(msg.err))
		} else {
			m.stats = msg.stats
			m.table.SetRows(tradeRows(msg.trades))
		}
		return m, m.tick()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func tradeRows(trades []models.Trade) []table.Row {
	rows := make([]table.Row, 0, len(trades))
	for _, t := range trades {
		sig := "-"
		if t.Signature != "" {
			sig = logger.ShortenAddress(t.Signature)
		}
		rows = append(rows, table.Row{
			t.CreatedAt.UTC().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", t.TelegramID),
			string(t.Side),
			logger.ShortenAddress(t.TokenAddress),
			t.AmountIn.String(),
			t.AmountOut.String(),
			sig,
		})
	}
	return rows
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(tableBorderStyle.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}

func (m *Model) headerView() string {
	title := titleStyle.Render("SolSniper")
	stats := statStyle.Render(fmt.Sprintf("Users: %d | Trades: %d | Open positions: %d",
		m.stats.Users, m.stats.Trades, m.stats.Positions))

	var status string
	switch {
	case m.err != nil:
		status = errorStyle.Render("🔴 " + m.err.Error())
	case m.loading:
		status = mutedStyle.Render("loading...")
	default:
		status = okStyle.Render("🟢 " + m.lastRefresh.Format("15:04:05"))
	}

	content := lipgloss.JoinHorizontal(lipgloss.Left, title, " | ", stats, " | ", status)
	style := headerStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(content)
}

func (m *Model) helpView() string {
	parts := make([]string, 0, len(m.keys.Bindings()))
	for _, b := range m.keys.Bindings() {
		h := b.Help()
		parts = append(parts, keyStyle.Render(h.Key)+" "+mutedStyle.Render(h.Desc))
	}
	return strings.Join(parts, mutedStyle.Render(" • "))
}
