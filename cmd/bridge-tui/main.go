package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/contextbridge/bridged/internal/admin"
	"github.com/contextbridge/bridged/internal/adminclient"
	"github.com/contextbridge/bridged/internal/config"
	"github.com/contextbridge/bridged/internal/instructionlog"
	"github.com/contextbridge/bridged/internal/session"
	"github.com/contextbridge/bridged/internal/wsbridge"
)

type panel int
type uiMode int

const (
	clientsPanel panel = iota
	sessionsPanel
)

const (
	dashboardMode uiMode = iota
	settingsMode
)

type loadResultMsg struct {
	status       admin.Status
	clients      []session.ClientInfo
	sessions     []wsbridge.SessionInfo
	instructions []instructionlog.Record
	err          error
	at           time.Time
}

type disconnectResultMsg struct {
	target string
	id     string
	err    error
}

type serviceActionMsg struct {
	action string
	cmd    *exec.Cmd
	err    error
}

type configSavedMsg struct {
	settings config.Settings
	err      error
}

type configReloadedMsg struct {
	settings config.Settings
	err      error
}

type tickMsg time.Time

type settingsForm struct {
	DaemonAddr      string
	AgentToken      string
	AdminToken      string
	FrontendBaseURL string
	FrontendToken   string
	ClientMaxIdle   string
	AdminBaseURL    string
	RefreshInterval string
}

type model struct {
	adminClient *adminclient.Client
	refresh     time.Duration
	repoRoot    string

	settings config.Settings
	form     settingsForm

	daemon       admin.Status
	clients      []session.ClientInfo
	sessions     []wsbridge.SessionInfo
	instructions []instructionlog.Record

	mode           uiMode
	focus          panel
	clientCursor   int
	sessionCursor  int
	settingsCursor int
	editingSetting bool

	editor textinput.Model

	daemonCmd *exec.Cmd
	daemonLog string

	spin spinner.Model

	clientVP      viewport.Model
	sessionVP     viewport.Model
	instructionVP viewport.Model

	chartSessions     streamlinechart.Model
	chartInstructions streamlinechart.Model

	spring harmonica.Spring
	animS  float64
	animI  float64
	velS   float64
	velI   float64

	status      string
	lastUpdated time.Time
	width       int
	height      int
}

func newModel(client *adminclient.Client, refresh time.Duration, repoRoot string, cfg config.Settings) model {
	ed := textinput.New()
	ed.Prompt = "value> "
	ed.CharLimit = 512
	ed.Width = 64

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	sChart := streamlinechart.New(
		34,
		8,
		streamlinechart.WithYRange(0, 32),
		streamlinechart.WithStyles(runes.ArcLineStyle, lipgloss.NewStyle().Foreground(lipgloss.Color("10"))),
	)
	iChart := streamlinechart.New(
		34,
		8,
		streamlinechart.WithYRange(0, 256),
		streamlinechart.WithStyles(runes.ArcLineStyle, lipgloss.NewStyle().Foreground(lipgloss.Color("14"))),
	)

	return model{
		adminClient:       client,
		refresh:           refresh,
		repoRoot:          repoRoot,
		settings:          cfg,
		form:              formFromSettings(cfg),
		mode:              dashboardMode,
		focus:             sessionsPanel,
		status:            "loading...",
		daemonLog:         filepath.Join(os.TempDir(), "bridged.log"),
		spin:              sp,
		editor:            ed,
		clientVP:          viewport.New(40, 20),
		sessionVP:         viewport.New(40, 20),
		instructionVP:     viewport.New(80, 8),
		chartSessions:     sChart,
		chartInstructions: iChart,
		spring:            harmonica.NewSpring(harmonica.FPS(60), 12.0, 1.0),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.adminClient), tickCmd(m.refresh), m.spin.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.syncLayout()
		m.syncViewportContent()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case loadResultMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.daemon = msg.status
		m.clients = msg.clients
		m.sessions = msg.sessions
		m.instructions = msg.instructions
		sort.Slice(m.clients, func(i, j int) bool { return m.clients[i].ConnectedAt.Before(m.clients[j].ConnectedAt) })
		sort.Slice(m.sessions, func(i, j int) bool { return m.sessions[i].ConnectedAt.Before(m.sessions[j].ConnectedAt) })
		if m.clientCursor >= len(m.clients) {
			m.clientCursor = max(0, len(m.clients)-1)
		}
		if m.sessionCursor >= len(m.sessions) {
			m.sessionCursor = max(0, len(m.sessions)-1)
		}
		m.lastUpdated = msg.at
		m.chartSessions.Push(float64(len(m.sessions)))
		m.chartInstructions.Push(float64(m.daemon.InstructionsSent))
		m.chartSessions.Draw()
		m.chartInstructions.Draw()
		m.syncViewportContent()
		m.status = fmt.Sprintf("clients=%d sessions=%d contexts=%d instructions=%d",
			len(m.clients), len(m.sessions), m.daemon.StoredContexts, m.daemon.InstructionsSent)
		return m, nil

	case disconnectResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("disconnect %s %s failed: %v", msg.target, shortID(msg.id), msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("disconnected %s %s", msg.target, shortID(msg.id))
		return m, fetchCmd(m.adminClient)

	case serviceActionMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s bridged failed: %v", msg.action, msg.err)
			return m, nil
		}
		if msg.action == "start" {
			m.daemonCmd = msg.cmd
		}
		if msg.action == "stop" {
			m.daemonCmd = nil
		}
		m.status = fmt.Sprintf("%s bridged ok", msg.action)
		return m, fetchCmd(m.adminClient)

	case configReloadedMsg:
		if msg.err != nil {
			m.status = "config reload failed: " + msg.err.Error()
			return m, nil
		}
		m.applySettings(msg.settings)
		m.status = "settings reloaded"
		return m, fetchCmd(m.adminClient)

	case configSavedMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
			return m, nil
		}
		m.applySettings(msg.settings)
		m.status = "settings saved"
		return m, fetchCmd(m.adminClient)

	case tickMsg:
		if !procAlive(m.daemonCmd) {
			m.daemonCmd = nil
		}
		m.animS, m.velS = m.spring.Update(m.animS, m.velS, float64(len(m.sessions)))
		m.animI, m.velI = m.spring.Update(m.animI, m.velI, float64(m.daemon.InstructionsSent))
		return m, tea.Batch(fetchCmd(m.adminClient), tickCmd(m.refresh))

	case tea.MouseMsg:
		if m.mode == dashboardMode && msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			for i, c := range m.clients {
				if z := zone.Get("client-" + c.ID); z != nil && z.InBounds(msg) {
					m.focus = clientsPanel
					m.clientCursor = i
					m.syncViewportContent()
					return m, nil
				}
			}
			for i, s := range m.sessions {
				if z := zone.Get("session-" + s.ID); z != nil && z.InBounds(msg) {
					m.focus = sessionsPanel
					m.sessionCursor = i
					m.syncViewportContent()
					return m, nil
				}
			}
		}

	case tea.KeyMsg:
		if m.mode == settingsMode {
			return updateSettingsMode(m, msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "c":
			m.mode = settingsMode
			m.editingSetting = false
			m.editor.Blur()
			m.status = "settings mode"
			return m, nil
		case "tab":
			if m.focus == clientsPanel {
				m.focus = sessionsPanel
			} else {
				m.focus = clientsPanel
			}
			m.syncViewportContent()
			return m, nil
		case "r":
			return m, fetchCmd(m.adminClient)
		case "up", "k":
			if m.focus == clientsPanel && m.clientCursor > 0 {
				m.clientCursor--
			}
			if m.focus == sessionsPanel && m.sessionCursor > 0 {
				m.sessionCursor--
			}
			m.syncViewportContent()
			return m, nil
		case "down", "j":
			if m.focus == clientsPanel && m.clientCursor < len(m.clients)-1 {
				m.clientCursor++
			}
			if m.focus == sessionsPanel && m.sessionCursor < len(m.sessions)-1 {
				m.sessionCursor++
			}
			m.syncViewportContent()
			return m, nil
		case "pgup":
			if m.focus == clientsPanel {
				m.clientVP.HalfViewUp()
			} else {
				m.sessionVP.HalfViewUp()
			}
			return m, nil
		case "pgdown":
			if m.focus == clientsPanel {
				m.clientVP.HalfViewDown()
			} else {
				m.sessionVP.HalfViewDown()
			}
			return m, nil
		case "d":
			if m.focus == clientsPanel && len(m.clients) > 0 {
				return m, disconnectClientCmd(m.adminClient, m.clients[m.clientCursor].ID)
			}
			if m.focus == sessionsPanel && len(m.sessions) > 0 {
				return m, disconnectSessionCmd(m.adminClient, m.sessions[m.sessionCursor].ID)
			}
			return m, nil
		case "s":
			if procAlive(m.daemonCmd) {
				m.status = "bridged is already running"
				return m, nil
			}
			return m, startDaemonCmd(m.repoRoot, m.daemonLog)
		case "x":
			return m, stopDaemonCmd(m.daemonCmd)
		}
	}

	return m, nil
}

func (m *model) applySettings(s config.Settings) {
	m.settings = s
	m.form = formFromSettings(s)
	m.refresh = s.TUIRefreshInterval
	m.adminClient = adminclient.New(s.AdminBaseURL, s.AdminToken, &http.Client{Timeout: 4 * time.Second})
}

func updateSettingsMode(m model, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editingSetting {
		if msg.String() == "enter" {
			m.setSelectedSettingValue(m.editor.Value())
			m.editingSetting = false
			m.editor.Blur()
			m.status = "value updated (press s to save config)"
			return m, nil
		}
		if msg.String() == "esc" {
			m.editingSetting = false
			m.editor.Blur()
			m.status = "edit canceled"
			return m, nil
		}
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "c":
		m.mode = dashboardMode
		m.status = "dashboard mode"
		return m, nil
	case "up", "k":
		if m.settingsCursor > 0 {
			m.settingsCursor--
		}
		return m, nil
	case "down", "j":
		if m.settingsCursor < len(settingNames())-1 {
			m.settingsCursor++
		}
		return m, nil
	case "r":
		return m, reloadConfigCmd(m.settings.Path)
	case "s":
		return m, saveConfigCmd(m.settings, m.form)
	case "e", "enter":
		m.editingSetting = true
		m.editor.SetValue(m.selectedSettingValue())
		m.editor.CursorEnd()
		cmd := m.editor.Focus()
		m.status = "editing " + settingNames()[m.settingsCursor]
		return m, cmd
	}
	return m, nil
}

func (m *model) syncLayout() {
	paneH := max(8, m.height-28)
	paneW := max(40, m.width/2-2)
	m.clientVP.Width = paneW - 2
	m.clientVP.Height = paneH
	m.sessionVP.Width = paneW - 2
	m.sessionVP.Height = paneH
	m.instructionVP.Width = max(80, m.width-4)
	m.instructionVP.Height = 6
}

func (m *model) syncViewportContent() {
	m.clientVP.SetContent(m.renderClientRows())
	m.sessionVP.SetContent(m.renderSessionRows())
	m.instructionVP.SetContent(m.renderInstructionRows())
	m.ensureCursorVisible()
}

func (m *model) ensureCursorVisible() {
	if m.focus == clientsPanel {
		m.clientVP.GotoTop()
		for i := 0; i < m.clientCursor; i++ {
			m.clientVP.LineDown(2)
		}
		return
	}
	m.sessionVP.GotoTop()
	for i := 0; i < m.sessionCursor; i++ {
		m.sessionVP.LineDown(2)
	}
}

func (m model) renderClientRows() string {
	cursorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	normalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	if len(m.clients) == 0 {
		return normalStyle.Render("(none)")
	}
	lines := make([]string, 0, len(m.clients)*2)
	for i, c := range m.clients {
		pref := "  "
		if i == m.clientCursor {
			pref = "> "
		}
		row := fmt.Sprintf("%s%s  %s  %s  calls=%d", pref, shortID(c.ID), emptyDefault(c.Name, "unnamed"), c.Transport, c.ToolCalls)
		if i == m.clientCursor {
			row = cursorStyle.Render(row)
		}
		row = zone.Mark("client-"+c.ID, row)
		lines = append(lines, row)
		lines = append(lines, fmt.Sprintf("    %s  seen %s", c.RemoteAddr, timeAgo(c.LastSeen)))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderSessionRows() string {
	cursorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	normalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	if len(m.sessions) == 0 {
		return normalStyle.Render("(none)")
	}
	lines := make([]string, 0, len(m.sessions)*3)
	for i, s := range m.sessions {
		pref := "  "
		if i == m.sessionCursor {
			pref = "> "
		}
		row := fmt.Sprintf("%s%s ctx=%d ins=%d", pref, shortID(s.ID), s.ContextsReceived, s.InstructionsSent)
		if i == m.sessionCursor {
			row = cursorStyle.Render(row)
		}
		row = zone.Mark("session-"+s.ID, row)
		lines = append(lines, row)
		lines = append(lines, fmt.Sprintf("    %s  seen %s", s.RemoteAddr, timeAgo(s.LastSeen)))
		if s.LastURL != "" {
			lines = append(lines, "    "+trimText(s.LastURL, 70))
		}
	}
	return strings.Join(lines, "\n")
}

func (m model) renderInstructionRows() string {
	normalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	if len(m.instructions) == 0 {
		return normalStyle.Render("(no instructions delivered yet)")
	}
	lines := make([]string, 0, len(m.instructions))
	for i := len(m.instructions) - 1; i >= 0; i-- {
		rec := m.instructions[i]
		lines = append(lines, fmt.Sprintf("%s  %s  %-24s %s",
			rec.SentAt.Format("15:04:05"), shortID(rec.SessionID), rec.Instruction.Type, rec.Instruction.Priority))
	}
	return strings.Join(lines, "\n")
}

func (m model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	normalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	if m.mode == settingsMode {
		return zone.Scan(m.settingsView(titleStyle, normalStyle))
	}

	focusStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))

	leftTitle := normalStyle.Render("Agent Clients")
	rightTitle := normalStyle.Render("Frontend Sessions")
	if m.focus == clientsPanel {
		leftTitle = focusStyle.Render("Agent Clients")
	}
	if m.focus == sessionsPanel {
		rightTitle = focusStyle.Render("Frontend Sessions")
	}

	paneW := max(40, m.width/2-2)
	leftPane := lipgloss.NewStyle().Width(paneW).Border(lipgloss.RoundedBorder()).Padding(0, 1).Render(leftTitle + "\n" + m.clientVP.View())
	rightPane := lipgloss.NewStyle().Width(paneW).Border(lipgloss.RoundedBorder()).Padding(0, 1).Render(rightTitle + "\n" + m.sessionVP.View())

	daemonState := "down"
	if procAlive(m.daemonCmd) {
		daemonState = fmt.Sprintf("up pid=%d", m.daemonCmd.Process.Pid)
	}

	statS := int(math.Round(m.animS))
	statI := int(math.Round(m.animI))
	cards := lipgloss.JoinHorizontal(
		lipgloss.Top,
		lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).Render(fmt.Sprintf("Sessions\n%d", statS)),
		lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).Render(fmt.Sprintf("Instructions\n%d", statI)),
		lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).Render(fmt.Sprintf("Contexts\n%d", m.daemon.StoredContexts)),
		lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).Render(fmt.Sprintf("Uptime\n%s", emptyDefault(m.daemon.Uptime, "n/a"))),
	)
	chartPanel := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Render("Sessions Trend\n"+m.chartSessions.View()),
		lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Render("Instructions Trend\n"+m.chartInstructions.View()),
	)
	instructionPane := lipgloss.NewStyle().Width(max(80, m.width-4)).Border(lipgloss.RoundedBorder()).Padding(0, 1).
		Render(normalStyle.Render("Recent Instructions") + "\n" + m.instructionVP.View())

	help := normalStyle.Render("mouse: click row | tab panel | j/k move | pgup/pgdown scroll | d disconnect | r refresh | s/x bridged | c settings | q quit")
	proc := normalStyle.Render(fmt.Sprintf("bridged[%s] %s | %s refreshing", daemonState, m.daemonLog, m.spin.View()))
	status := titleStyle.Render("status: ") + m.status
	row := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	return zone.Scan(strings.Join([]string{
		titleStyle.Render("bridged control"),
		cards,
		chartPanel,
		row,
		instructionPane,
		proc,
		status,
		help,
	}, "\n"))
}

func (m model) settingsView(titleStyle, normalStyle lipgloss.Style) string {
	cursorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

	lines := []string{titleStyle.Render("Settings")}
	for i, name := range settingNames() {
		prefix := "  "
		if i == m.settingsCursor {
			prefix = cursorStyle.Render("> ")
		}
		lines = append(lines, fmt.Sprintf("%s%s = %s", prefix, name, m.settingValueByIndex(i)))
	}

	editLine := normalStyle.Render("select a field, press e or enter to edit")
	if m.editingSetting {
		editLine = keyStyle.Render("editing") + " " + settingNames()[m.settingsCursor] + "\n" + m.editor.View()
	}

	help := normalStyle.Render("j/k move | e/enter edit+apply | s save | r reload | c/esc back")
	status := titleStyle.Render("status: ") + m.status
	box := lipgloss.NewStyle().Width(max(80, m.width-2)).Border(lipgloss.RoundedBorder()).Padding(0, 1).Render(strings.Join(lines, "\n"))
	return strings.Join([]string{box, editLine, status, help}, "\n")
}

func fetchCmd(client *adminclient.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		status, err := client.Status(ctx)
		if err != nil {
			return loadResultMsg{err: err}
		}
		clients, err := client.ListClients(ctx)
		if err != nil {
			return loadResultMsg{err: err}
		}
		sessions, err := client.ListSessions(ctx)
		if err != nil {
			return loadResultMsg{err: err}
		}
		instructions, err := client.RecentInstructions(ctx, 50)
		if err != nil {
			return loadResultMsg{err: err}
		}
		return loadResultMsg{
			status:       status,
			clients:      clients,
			sessions:     sessions,
			instructions: instructions,
			at:           time.Now(),
		}
	}
}

func disconnectClientCmd(client *adminclient.Client, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := client.DisconnectClient(ctx, id)
		return disconnectResultMsg{target: "client", id: id, err: err}
	}
}

func disconnectSessionCmd(client *adminclient.Client, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := client.DisconnectSession(ctx, id)
		return disconnectResultMsg{target: "session", id: id, err: err}
	}
}

func saveConfigCmd(current config.Settings, form settingsForm) tea.Cmd {
	return func() tea.Msg {
		next, err := formToSettings(current, form)
		if err != nil {
			return configSavedMsg{err: err}
		}
		saved, err := config.Save(next)
		if err != nil {
			return configSavedMsg{err: err}
		}
		return configSavedMsg{settings: saved}
	}
}

func reloadConfigCmd(path string) tea.Cmd {
	return func() tea.Msg {
		cfg, err := config.LoadOrCreate(path)
		if err != nil {
			return configReloadedMsg{err: err}
		}
		return configReloadedMsg{settings: cfg}
	}
}

func startDaemonCmd(repoRoot, logPath string) tea.Cmd {
	return func() tea.Msg {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return serviceActionMsg{action: "start", err: err}
		}
		cmd := exec.Command("go", "run", "./cmd/bridged")
		cmd.Dir = repoRoot
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		if err := cmd.Start(); err != nil {
			_ = logFile.Close()
			return serviceActionMsg{action: "start", err: err}
		}
		go func() {
			_ = cmd.Wait()
			_ = logFile.Close()
		}()
		return serviceActionMsg{action: "start", cmd: cmd}
	}
}

func stopDaemonCmd(cmd *exec.Cmd) tea.Cmd {
	return func() tea.Msg {
		if !procAlive(cmd) {
			return serviceActionMsg{action: "stop", err: errors.New("not running")}
		}
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			return serviceActionMsg{action: "stop", err: err}
		}
		return serviceActionMsg{action: "stop"}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func procAlive(cmd *exec.Cmd) bool {
	if cmd == nil || cmd.Process == nil {
		return false
	}
	return cmd.Process.Signal(syscall.Signal(0)) == nil
}

func settingNames() []string {
	return []string{
		"daemon.addr",
		"auth.agent_token",
		"auth.admin_token",
		"frontend.base_url",
		"frontend.token",
		"daemon.client_max_idle",
		"tui.admin_base_url",
		"tui.refresh_interval",
	}
}

func formFromSettings(s config.Settings) settingsForm {
	return settingsForm{
		DaemonAddr:      s.DaemonAddr,
		AgentToken:      s.AgentToken,
		AdminToken:      s.AdminToken,
		FrontendBaseURL: s.FrontendBaseURL,
		FrontendToken:   s.FrontendToken,
		ClientMaxIdle:   s.ClientMaxIdle.String(),
		AdminBaseURL:    s.AdminBaseURL,
		RefreshInterval: s.TUIRefreshInterval.String(),
	}
}

func formToSettings(base config.Settings, form settingsForm) (config.Settings, error) {
	next := base
	next.DaemonAddr = strings.TrimSpace(form.DaemonAddr)
	next.AgentToken = strings.TrimSpace(form.AgentToken)
	next.AdminToken = strings.TrimSpace(form.AdminToken)
	next.FrontendBaseURL = strings.TrimSpace(form.FrontendBaseURL)
	next.FrontendToken = strings.TrimSpace(form.FrontendToken)
	next.AdminBaseURL = strings.TrimSpace(form.AdminBaseURL)
	if strings.TrimSpace(form.ClientMaxIdle) == "" {
		return config.Settings{}, errors.New("daemon.client_max_idle cannot be empty")
	}
	maxIdle, err := time.ParseDuration(strings.TrimSpace(form.ClientMaxIdle))
	if err != nil {
		return config.Settings{}, fmt.Errorf("invalid daemon.client_max_idle: %w", err)
	}
	if strings.TrimSpace(form.RefreshInterval) == "" {
		return config.Settings{}, errors.New("tui.refresh_interval cannot be empty")
	}
	refresh, err := time.ParseDuration(strings.TrimSpace(form.RefreshInterval))
	if err != nil {
		return config.Settings{}, fmt.Errorf("invalid tui.refresh_interval: %w", err)
	}
	next.ClientMaxIdle = maxIdle
	next.TUIRefreshInterval = refresh
	return next, nil
}

func (m model) selectedSettingValue() string { return m.settingValueByIndex(m.settingsCursor) }

func (m model) settingValueByIndex(i int) string {
	switch i {
	case 0:
		return m.form.DaemonAddr
	case 1:
		return m.form.AgentToken
	case 2:
		return m.form.AdminToken
	case 3:
		return m.form.FrontendBaseURL
	case 4:
		return m.form.FrontendToken
	case 5:
		return m.form.ClientMaxIdle
	case 6:
		return m.form.AdminBaseURL
	case 7:
		return m.form.RefreshInterval
	default:
		return ""
	}
}

func (m *model) setSelectedSettingValue(value string) {
	switch m.settingsCursor {
	case 0:
		m.form.DaemonAddr = value
	case 1:
		m.form.AgentToken = value
	case 2:
		m.form.AdminToken = value
	case 3:
		m.form.FrontendBaseURL = value
	case 4:
		m.form.FrontendToken = value
	case 5:
		m.form.ClientMaxIdle = value
	case 6:
		m.form.AdminBaseURL = value
	case 7:
		m.form.RefreshInterval = value
	}
}

func shortID(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

func emptyDefault(s, d string) string {
	if strings.TrimSpace(s) == "" {
		return d
	}
	return s
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String() + " ago"
}

func trimText(s string, n int) string {
	if n < 4 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	cur := wd
	for {
		if _, err := os.Stat(filepath.Join(cur, "go.mod")); err == nil {
			return cur, nil
		}
		next := filepath.Dir(cur)
		if next == cur {
			return "", errors.New("go.mod not found from cwd")
		}
		cur = next
	}
}

func main() {
	zone.NewGlobal()
	settings, err := config.LoadOrCreate("")
	if err != nil {
		fmt.Printf("config error: %v\n", err)
		return
	}
	repoRoot, err := findRepoRoot()
	if err != nil {
		fmt.Printf("repo error: %v\n", err)
		return
	}
	client := adminclient.New(settings.AdminBaseURL, settings.AdminToken, &http.Client{Timeout: 4 * time.Second})
	m := newModel(client, settings.TUIRefreshInterval, repoRoot, settings)
	m.syncLayout()
	m.syncViewportContent()
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run(); err != nil {
		fmt.Printf("tui error: %v\n", err)
	}
}
