// Command cli is a terminal client for a sitesmith server.
//
// Usage:
//
//	export SITESMITH_URL="http://localhost:8080"
//	go run ./cmd/cli
//
// Commands:
//
//	/exit - Exit the program
//	/files - List the files of the latest fragment
//	<message> - Send a prompt to the code agent
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nstogner/sitesmith/pkg/client"
	"github.com/nstogner/sitesmith/pkg/config"
	"github.com/nstogner/sitesmith/pkg/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	fragmentStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#25A065")).
			Padding(0, 1)

	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1) // Red
)

type state int

const (
	stateMenu state = iota
	stateSelectingProject
	stateChatting
)

type errMsg struct{ err error }
type projectsMsg []domain.Project
type projectOpenedMsg struct {
	project *domain.Project
	stream  <-chan domain.Message
}
type streamMsg domain.Message
type streamClosedMsg struct{}

type model struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *client.Client

	// State
	state      state
	projects   []domain.Project
	project    *domain.Project
	stream     <-chan domain.Message
	messages   []domain.Message
	cursor     int
	listOffset int
	width      int
	height     int
	err        error

	// UI Components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
}

func initialModel(ctx context.Context, c *client.Client) model {
	ta := textarea.New()
	ta.Placeholder = "Describe the app you want to build..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 10000

	ta.SetWidth(80)
	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent("Welcome! Select an option.")

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Use "light" style to avoid terminal queries that leak into input
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	return model{
		ctx:      ctx,
		client:   c,
		state:    stateMenu,
		viewport: vp,
		textarea: ta,
		spinner:  sp,
		renderer: r,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var tiCmd, vpCmd, spCmd tea.Cmd
	// This prevents the Enter key used for menu selection from leaking into the textarea.
	switch msg.(type) {
	case tea.KeyMsg:
		if m.state == stateChatting {
			m.textarea, tiCmd = m.textarea.Update(msg)
			cmds = append(cmds, tiCmd)
		}
	default:
		m.textarea, tiCmd = m.textarea.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)
	m.spinner, spCmd = m.spinner.Update(msg)
	cmds = append(cmds, spCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 4 // Header + status + margin
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.viewport.YPosition = 2

		// Recreate renderer with new width
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)
		m.refresh()

		// Re-clamp listOffset to ensure cursor remains visible after resize
		maxViewable := m.maxViewable()
		if m.cursor < m.listOffset {
			m.listOffset = m.cursor
		}
		if m.cursor >= m.listOffset+maxViewable {
			m.listOffset = m.cursor - maxViewable + 1
		}
		if m.listOffset < 0 {
			m.listOffset = 0
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancel()
			return m, tea.Quit
		case tea.KeyEnter:
			switch m.state {
			case stateMenu:
				if m.cursor == 0 {
					// New Project: the first prompt creates it.
					m.state = stateChatting
					m.viewport.SetContent(dimStyle.Render("Describe the app you want to build."))
				} else {
					return m, m.listProjects()
				}
			case stateSelectingProject:
				if len(m.projects) == 0 {
					return m, nil
				}
				return m, m.openProject(m.projects[m.cursor].ID)
			case stateChatting:
				m.err = nil // Clear error on new message
				return m.sendMessage()
			}
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.listOffset {
					m.listOffset = m.cursor
				}
			}
		case tea.KeyDown:
			var maxCursor int
			switch m.state {
			case stateMenu:
				maxCursor = 1 // 2 options
			case stateSelectingProject:
				maxCursor = len(m.projects) - 1
			}
			if m.cursor < maxCursor {
				m.cursor++
				if maxViewable := m.maxViewable(); m.cursor >= m.listOffset+maxViewable {
					m.listOffset = m.cursor - maxViewable + 1
				}
			}
		}

	case projectsMsg:
		if len(msg) == 0 {
			m.err = fmt.Errorf("no existing projects found")
			break
		}
		m.projects = msg
		m.state = stateSelectingProject
		m.cursor = 0
		m.listOffset = 0

	case projectOpenedMsg:
		m.project = msg.project
		m.stream = msg.stream
		m.messages = nil
		m.state = stateChatting
		m.textarea.Placeholder = "Ask for a change..."
		m.textarea.Focus()
		m.refresh()
		cmds = append(cmds, waitForMessage(m.stream))

	case streamMsg:
		slog.Debug("TUI received message", "id", msg.ID, "role", msg.Role)
		m.messages = append(m.messages, domain.Message(msg))
		m.refresh()
		cmds = append(cmds, waitForMessage(m.stream))

	case streamClosedMsg:
		if m.ctx.Err() == nil {
			m.err = fmt.Errorf("lost connection to server")
		}

	case errMsg:
		m.err = msg.err
	}

	return m, tea.Batch(cmds...)
}

func (m model) maxViewable() int {
	// Header: ~3 lines, Footer: ~3 lines
	if v := m.height - 7; v > 0 {
		return v
	}
	return 1
}

// building reports whether the latest prompt is still waiting for its result.
func (m model) building() bool {
	return len(m.messages) > 0 && m.messages[len(m.messages)-1].Role == domain.RoleUser
}

func (m model) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("\nError: %v", m.err))
	}

	switch m.state {
	case stateMenu:
		header := titleStyle.Render("sitesmith")

		options := []string{"New Project", "Open Project"}
		var optionsView []string
		for i, choice := range options {
			cursor := " "
			if m.cursor == i {
				cursor = ">"
				choice = selectedItemStyle.Render(choice)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), choice))
		}

		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."

		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)

	case stateSelectingProject:
		header := titleStyle.Render("Select Project")

		start := m.listOffset
		end := min(start+m.maxViewable(), len(m.projects))

		var optionsView []string
		for i := start; i < end; i++ {
			choice := m.projects[i]
			cursor := " "
			line := fmt.Sprintf("%s (%s)", choice.Name, choice.UpdatedAt.Format(time.RFC822))
			if m.cursor == i {
				cursor = ">"
				line = selectedItemStyle.Render(line)
			}
			optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), line))
		}

		list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
		footer := "Press Enter to select, Esc to quit."

		return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)
	}

	title := "New Project"
	if m.project != nil {
		title = m.project.Name
	}
	status := ""
	if m.building() {
		status = m.spinner.View() + " Building..."
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render(title),
		"",
		m.viewport.View(),
		status,
		errorView,
		m.textarea.View(),
	)
}

// Actions

func (m model) listProjects() tea.Cmd {
	return func() tea.Msg {
		projects, err := m.client.ListProjects(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return projectsMsg(projects)
	}
}

func (m model) openProject(id string) tea.Cmd {
	return func() tea.Msg {
		p, err := m.client.GetProject(m.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		stream, err := m.client.Stream(m.ctx, p.ID)
		if err != nil {
			return errMsg{err}
		}
		return projectOpenedMsg{project: p, stream: stream}
	}
}

func (m model) sendMessage() (model, tea.Cmd) {
	v := strings.TrimSpace(m.textarea.Value())
	if v == "" {
		return m, nil
	}

	switch v {
	case "/exit":
		m.cancel()
		return m, tea.Quit
	case "/files":
		m.textarea.Reset()
		m.viewport.SetContent(m.renderFiles())
		m.viewport.GotoBottom()
		return m, nil
	}

	// Clear input
	m.textarea.Reset()

	if m.project == nil {
		return m, func() tea.Msg {
			p, err := m.client.CreateProject(m.ctx, v)
			if err != nil {
				return errMsg{err}
			}
			stream, err := m.client.Stream(m.ctx, p.ID)
			if err != nil {
				return errMsg{err}
			}
			return projectOpenedMsg{project: p, stream: stream}
		}
	}

	projectID := m.project.ID
	return m, func() tea.Msg {
		// The stored message comes back through the stream.
		if _, err := m.client.PostMessage(m.ctx, projectID, v); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// refresh re-renders the conversation into the viewport.
func (m *model) refresh() {
	var sb strings.Builder
	for _, msg := range m.messages {
		if msg.Role == domain.RoleUser {
			sb.WriteString(userStyle.Render("You: "))
		} else {
			sb.WriteString(senderStyle.Render("AI: "))
		}
		sb.WriteString("\n")

		content := msg.Content
		if m.renderer != nil {
			if rendered, err := m.renderer.Render(content); err == nil {
				content = rendered
			}
		}
		if msg.Type == domain.TypeError {
			content = errorStyle.Render(msg.Content)
		}
		sb.WriteString(content)
		sb.WriteString("\n")

		if f := msg.Fragment; f != nil {
			card := fmt.Sprintf("%s\n%s\n%s", selectedItemStyle.Render(f.Title), f.SandboxURL,
				dimStyle.Render(fmt.Sprintf("%d file(s), /files to list", len(f.Files))))
			sb.WriteString(fragmentStyle.Render(card))
			sb.WriteString("\n")
		}
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m model) renderFiles() string {
	for i := len(m.messages) - 1; i >= 0; i-- {
		f := m.messages[i].Fragment
		if f == nil {
			continue
		}
		paths := make([]string, 0, len(f.Files))
		for p := range f.Files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		return fragmentStyle.Render(selectedItemStyle.Render(f.Title) + "\n" + strings.Join(paths, "\n"))
	}
	return dimStyle.Render("No fragment yet.")
}

func waitForMessage(ch <-chan domain.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return streamMsg(msg)
	}
}

// --- Main ---

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	// Log to a file so output does not corrupt the TUI.
	f, err := os.OpenFile("sitesmith-cli.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer f.Close()

	logLevel := slog.LevelInfo
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel})))
	slog.Info("Logging initialized", "level", logLevel, "server", cfg.ServerURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := initialModel(ctx, client.New(cfg.ServerURL))
	m.cancel = cancel

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
