package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/quest-engine/internal/events"
)

const maxLogLines = 200

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	titleCaser = cases.Title(language.English)
)

type progressKey struct {
	actorID     string
	objectiveID string
}

type progressRow struct {
	current  int
	target   int
	complete bool
}

// ConsoleUI is the BubbleTea model that runs the observer UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	eventCh     <-chan events.Event
	logViewport viewport.Model
	ready       bool
	width       int
	height      int

	progress map[progressKey]progressRow
	log      []string
	closed   bool
}

type engineEventMsg events.Event

type channelClosedMsg struct{}

func NewConsoleUI(eventCh <-chan events.Event) *ConsoleUI {
	return &ConsoleUI{
		eventCh:  eventCh,
		progress: make(map[progressKey]progressRow),
	}
}

func (ui *ConsoleUI) Init() tea.Cmd {
	return ui.waitForEvent()
}

// waitForEvent blocks on the Pub/Sub channel and converts the next engine
// event into a tea message.
func (ui *ConsoleUI) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ui.eventCh
		if !ok {
			return channelClosedMsg{}
		}
		return engineEventMsg(ev)
	}
}

func (ui *ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return ui, tea.Quit
		case "c":
			ui.log = nil
			ui.refreshViewport()
			return ui, nil
		}

	case tea.WindowSizeMsg:
		ui.width = msg.Width
		ui.height = msg.Height
		logHeight := msg.Height - ui.tableHeight() - 4
		if logHeight < 3 {
			logHeight = 3
		}
		if !ui.ready {
			ui.logViewport = viewport.New(msg.Width, logHeight)
			ui.ready = true
		} else {
			ui.logViewport.Width = msg.Width
			ui.logViewport.Height = logHeight
		}
		ui.refreshViewport()
		return ui, nil

	case engineEventMsg:
		ui.apply(events.Event(msg))
		ui.refreshViewport()
		return ui, ui.waitForEvent()

	case channelClosedMsg:
		ui.closed = true
		ui.appendLog(dimStyle.Render("connection closed"))
		ui.refreshViewport()
		return ui, nil
	}

	var cmd tea.Cmd
	ui.logViewport, cmd = ui.logViewport.Update(msg)
	return ui, cmd
}

func (ui *ConsoleUI) apply(ev events.Event) {
	key := progressKey{actorID: ev.ActorID, objectiveID: ev.ObjectiveID}

	switch ev.Type {
	case events.EventTypeProgressUpdated:
		row := progressRow{}
		if current, ok := toInt(ev.Data["current"]); ok {
			row.current = current
		}
		if target, ok := toInt(ev.Data["target"]); ok {
			row.target = target
		}
		row.complete = row.target > 0 && row.current >= row.target
		ui.progress[key] = row
		ui.appendLog(fmt.Sprintf("%s %s: %s %d/%d",
			timestamp(), ev.ActorID, ev.ObjectiveID, row.current, row.target))

	case events.EventTypeObjectiveCompleted:
		if row, ok := ui.progress[key]; ok {
			row.complete = true
			ui.progress[key] = row
		}
		ui.appendLog(completeStyle.Render(fmt.Sprintf("%s %s completed %s",
			timestamp(), ev.ActorID, ev.ObjectiveID)))

	case events.EventTypeProgressReset:
		delete(ui.progress, key)
		ui.appendLog(fmt.Sprintf("%s %s: %s reset",
			timestamp(), ev.ActorID, ev.ObjectiveID))
	}
}

func (ui *ConsoleUI) appendLog(line string) {
	ui.log = append(ui.log, line)
	if len(ui.log) > maxLogLines {
		ui.log = ui.log[len(ui.log)-maxLogLines:]
	}
}

func (ui *ConsoleUI) refreshViewport() {
	if !ui.ready {
		return
	}
	wrapped := wordwrap.String(strings.Join(ui.log, "\n"), ui.logViewport.Width)
	ui.logViewport.SetContent(wrapped)
	ui.logViewport.GotoBottom()
}

func (ui *ConsoleUI) tableHeight() int {
	return len(ui.progress) + 2
}

func (ui *ConsoleUI) View() string {
	if !ui.ready {
		return "Connecting..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Quest Engine Console"))
	if ui.closed {
		b.WriteString(dimStyle.Render("  (disconnected)"))
	}
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-20s %-24s %s", "Actor", "Objective", "Progress")))
	b.WriteString("\n")
	for _, key := range ui.sortedKeys() {
		row := ui.progress[key]
		line := fmt.Sprintf("%-20s %-24s %d/%d",
			key.actorID, titleCaser.String(strings.ReplaceAll(key.objectiveID, "_", " ")),
			row.current, row.target)
		if row.complete {
			line = completeStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.logViewport.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q: quit  c: clear log"))
	return b.String()
}

func (ui *ConsoleUI) sortedKeys() []progressKey {
	keys := make([]progressKey, 0, len(ui.progress))
	for key := range ui.progress {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].actorID != keys[j].actorID {
			return keys[i].actorID < keys[j].actorID
		}
		return keys[i].objectiveID < keys[j].objectiveID
	})
	return keys
}

func timestamp() string {
	return dimStyle.Render(time.Now().Format("15:04:05"))
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
