// Command dashboard is a terminal portfolio view backed by the HTTP API: one
// row per tracked asset with its live quote and latest recommendation,
// refreshed on a timer.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"coin-compass/internal/domain"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
)

const refreshEvery = 10 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	baseStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1)
	upStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type apiClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newAPIClient() *apiClient {
	baseURL := strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &apiClient{
		baseURL: baseURL,
		apiKey:  os.Getenv("API_KEY"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var errNotFound = fmt.Errorf("not found")

type assetRow struct {
	quote    domain.Quote
	analysis *domain.AnalysisRecord
}

type rowsMsg []assetRow
type fetchErrMsg struct{ err error }
type tickMsg time.Time

func fetchRows(c *apiClient) tea.Cmd {
	return func() tea.Msg {
		var priceResp struct {
			Prices []domain.Quote `json:"prices"`
		}
		if err := c.getJSON("/api/prices", &priceResp); err != nil {
			return fetchErrMsg{err}
		}

		rows := make([]assetRow, 0, len(priceResp.Prices))
		for _, quote := range priceResp.Prices {
			row := assetRow{quote: quote}
			var rec domain.AnalysisRecord
			if err := c.getJSON("/api/analysis/"+quote.Symbol, &rec); err == nil {
				row.analysis = &rec
			}
			rows = append(rows, row)
		}
		return rowsMsg(rows)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	api       *apiClient
	table     table.Model
	lastError string
	updatedAt time.Time
}

func newModel(api *apiClient) model {
	columns := []table.Column{
		{Title: "Symbol", Width: 8},
		{Title: "Price", Width: 14},
		{Title: "24h %", Width: 10},
		{Title: "24h Volume", Width: 16},
		{Title: "Source", Width: 10},
		{Title: "Verdict", Width: 8},
		{Title: "Conf", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return model{api: api, table: t}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchRows(m.api), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchRows(m.api)
		}
	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 6)
	case tickMsg:
		return m, tea.Batch(fetchRows(m.api), tick())
	case rowsMsg:
		m.table.SetRows(toTableRows(msg))
		m.lastError = ""
		m.updatedAt = time.Now()
	case fetchErrMsg:
		m.lastError = msg.err.Error()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Coin Compass"))
	b.WriteString("\n")
	b.WriteString(baseStyle.Render(m.table.View()))
	b.WriteString("\n")
	if m.lastError != "" {
		b.WriteString(errStyle.Render("error: " + m.lastError))
		b.WriteString("\n")
	}
	status := "never"
	if !m.updatedAt.IsZero() {
		status = m.updatedAt.Format("15:04:05")
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("updated %s · r refresh · q quit", status)))
	return b.String()
}

func toTableRows(rows []assetRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		change := fmt.Sprintf("%+.2f%%", r.quote.Change24hPct)
		if r.quote.Change24hPct >= 0 {
			change = upStyle.Render(change)
		} else {
			change = downStyle.Render(change)
		}

		verdict, conf := "-", "-"
		if r.analysis != nil {
			verdict = strings.ToUpper(string(r.analysis.Recommendation))
			conf = fmt.Sprintf("%.0f", r.analysis.Confidence)
		}

		out = append(out, table.Row{
			r.quote.Symbol,
			fmt.Sprintf("$%.2f", r.quote.Price),
			change,
			fmt.Sprintf("$%.0f", r.quote.Volume24h),
			r.quote.Source,
			verdict,
			conf,
		})
	}
	return out
}

func main() {
	godotenv.Load()

	p := tea.NewProgram(newModel(newAPIClient()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("dashboard error: %v", err)
	}
}
