package display

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	statusStyle  = lipgloss.NewStyle().Bold(true)
	addressStyle = lipgloss.NewStyle().Faint(true)
	dividerStyle = lipgloss.NewStyle().Faint(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	alertStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

// updateMsg signals that the store changed.
type updateMsg struct{}

// Model is the bubbletea front end of a Paginator.
type Model struct {
	pager    *Paginator
	updates  <-chan struct{}
	keys     KeyMap
	view     View
	quitting bool
}

// NewModel creates a terminal model redrawing on every notification.
func NewModel(pager *Paginator, notifier *Notifier) Model {
	model := Model{pager: pager, keys: DefaultKeyMap}
	if notifier != nil {
		model.updates = notifier.C()
	}
	model.view = pager.Render()
	return model
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	if model.updates == nil {
		return nil
	}
	return listenForUpdate(model.updates)
}

// listenForUpdate blocks until the notifier fires.
func listenForUpdate(channel <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-channel; !ok {
			return nil
		}
		return updateMsg{}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Quit):
			model.quitting = true
			return model, tea.Quit
		case key.Matches(message, model.keys.Prev):
			model.pager.Prev()
		case key.Matches(message, model.keys.Next):
			model.pager.Next()
		case key.Matches(message, model.keys.Pause):
			model.pager.TogglePause()
		default:
			return model, nil
		}
		model.view = model.pager.Render()
		return model, nil

	case updateMsg:
		model.view = model.pager.Render()
		return model, listenForUpdate(model.updates)
	}
	return model, nil
}

// View implements tea.Model.
func (model Model) View() string {
	if model.quitting {
		return ""
	}

	width := model.pager.width
	var b strings.Builder

	status := statusStyle.Render(model.view.Status)
	address := addressStyle.Render("IP: " + model.view.Address)
	gap := width - lipgloss.Width(status) - lipgloss.Width(address)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(status + strings.Repeat(" ", gap) + address + "\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", width)) + "\n")

	for _, line := range model.view.Lines {
		switch line.Tag {
		case TagAlert:
			b.WriteString(alertStyle.Render(line.Text))
		case TagWarn:
			b.WriteString(warnStyle.Render(line.Text))
		default:
			b.WriteString(line.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("←/p newer  →/n older  space pause  q quit"))
	return b.String()
}
