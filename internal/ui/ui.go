package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"duely/internal/config"
	"duely/internal/reminder"
	"duely/internal/task"
)

const dueLayout = "2006-01-02 15:04"

type mode int

const (
	modeList mode = iota
	modeForm
	modeSearch
)

// Tasks is the part of the store the UI drives.
type Tasks interface {
	Create(ctx context.Context, d task.Draft) (task.ID, error)
	Update(ctx context.Context, id task.ID, d task.Draft) error
	Delete(ctx context.Context, id task.ID) error
	ToggleCompletion(ctx context.Context, id task.ID) error
	List() []task.Task
}

// Notifier is the host side of reminder delivery.
type Notifier interface {
	Delivered() <-chan reminder.Notification
	Activate(id task.ID)
	Selection() *reminder.Selection
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	overdueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
)

type formState struct {
	taskID   task.ID // empty when adding
	title    string
	details  string
	due      string
	reminder string
	done     string
	index    int
}

type row struct {
	label task.Label
	task  task.Task
}

type Model struct {
	tasks    Tasks
	notifier Notifier
	selected <-chan task.ID
	cfg      config.Config
	now      func() time.Time

	rows       []row
	cursor     int
	mode       mode
	input      textinput.Model
	query      string
	status     string
	confirmDel bool
	pendingDel *task.Task
	form       *formState
	lastFired  *reminder.Notification
}

type reminderMsg reminder.Notification

type selectedMsg task.ID

func New(tasks Tasks, notifier Notifier, cfg config.Config) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		tasks:    tasks,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		input:    ti,
		mode:     modeList,
		status:   fmt.Sprintf("Press '%s' to add, space to toggle, '%s' to delete.", cfg.Keys.Add, cfg.Keys.Delete),
	}
	if notifier != nil {
		m.selected = notifier.Selection().Subscribe()
	}
	m.reload()
	return m
}

func Run(tasks Tasks, notifier Notifier, cfg config.Config) error {
	program := tea.NewProgram(New(tasks, notifier, cfg))
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	if m.notifier == nil {
		return nil
	}
	return tea.Batch(waitForReminder(m.notifier.Delivered()), waitForSelection(m.selected))
}

func waitForReminder(ch <-chan reminder.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return reminderMsg(n)
	}
}

func waitForSelection(ch <-chan task.ID) tea.Cmd {
	return func() tea.Msg {
		id, ok := <-ch
		if !ok {
			return nil
		}
		return selectedMsg(id)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.form != nil {
			return m.updateFormMode(msg.String(), msg)
		}
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		if m.mode == modeSearch {
			return m.updateSearchMode(msg.String(), msg)
		}
		return m.updateListMode(msg.String())
	case reminderMsg:
		n := reminder.Notification(msg)
		m.lastFired = &n
		m.status = fmt.Sprintf("%s (%s) • press '%s' to open", n.Title, n.Body, m.cfg.Keys.Jump)
		return m, waitForReminder(m.notifier.Delivered())
	case selectedMsg:
		m.jumpTo(task.ID(msg))
		return m, waitForSelection(m.selected)
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	}
	return m, nil
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		if len(m.rows) == 0 {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor+1, len(m.rows))
	case m.cfg.Keys.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(m.rows))
		}
	case m.cfg.Keys.Add:
		return m.startForm(nil)
	case m.cfg.Keys.Edit:
		if len(m.rows) == 0 {
			m.status = "No tasks to edit"
			return m, nil
		}
		t := m.rows[m.cursor].task
		return m.startForm(&t)
	case m.cfg.Keys.Toggle:
		if len(m.rows) == 0 {
			return m, nil
		}
		t := m.rows[m.cursor].task
		if err := m.tasks.ToggleCompletion(context.Background(), t.ID); err != nil {
			m.status = fmt.Sprintf("toggle failed: %v", err)
			return m, nil
		}
		m.reload()
		m.jumpTo(t.ID)
		m.status = "Toggled task"
	case m.cfg.Keys.Delete:
		if len(m.rows) == 0 {
			return m, nil
		}
		t := m.rows[m.cursor].task
		m.confirmDel = true
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Title)
	case m.cfg.Keys.Search:
		m.mode = modeSearch
		m.input.SetValue(m.query)
		m.input.Placeholder = "search title or details"
		m.input.Focus()
		m.status = "Search: type to filter, enter to keep, esc to clear"
	case m.cfg.Keys.Jump:
		if m.lastFired == nil {
			m.status = "No reminder to open"
			return m, nil
		}
		m.notifier.Activate(m.lastFired.TaskID)
		m.lastFired = nil
	}
	return m, nil
}

func (m Model) updateSearchMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.query = ""
		m.mode = modeList
		m.input.SetValue("")
		m.input.Blur()
		m.reload()
		m.status = "Search cleared"
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.mode = modeList
		m.input.Blur()
		m.status = fmt.Sprintf("%d matching tasks", len(m.rows))
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.query = m.input.Value()
		m.reload()
		return m, cmd
	}
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", "esc":
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	case "y", "Y":
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			m.confirmDel = false
			return m, nil
		}
		if err := m.tasks.Delete(context.Background(), m.pendingDel.ID); err != nil {
			m.status = fmt.Sprintf("delete failed: %v", err)
		} else {
			m.reload()
			m.status = "Deleted task"
		}
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) startForm(t *task.Task) (tea.Model, tea.Cmd) {
	if t == nil {
		due := m.now().Add(time.Hour).Truncate(time.Minute)
		m.form = &formState{due: due.Format(dueLayout), reminder: "n", done: "n"}
		m.status = "New task: " + m.formPrompt()
	} else {
		m.form = &formState{
			taskID:   t.ID,
			title:    t.Title,
			details:  t.Details,
			due:      t.Due.Format(dueLayout),
			reminder: boolToYN(t.Reminder),
			done:     boolToYN(t.Completed),
		}
	}
	m.input.SetValue(m.form.currentValue())
	m.input.Placeholder = m.form.currentLabel()
	m.input.Focus()
	m.mode = modeForm
	if t != nil {
		m.status = m.formPrompt()
	}
	return m, nil
}

func (m Model) updateFormMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.form = nil
		m.mode = modeList
		m.input.Blur()
		m.status = "Edit cancelled"
		return m, nil
	case m.cfg.Keys.NextItem, "tab", "down":
		m.moveField(1)
		return m, nil
	case "shift+tab", "up":
		m.moveField(-1)
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.form.setCurrentValue(m.input.Value())
		if m.form.index >= len(formFields())-1 {
			return m.saveForm()
		}
		m.moveField(1)
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m *Model) moveField(delta int) {
	m.form.setCurrentValue(m.input.Value())
	m.form.index = wrapIndex(m.form.index+delta, len(formFields()))
	m.input.SetValue(m.form.currentValue())
	m.input.Placeholder = m.form.currentLabel()
	m.status = m.formPrompt()
}

func (m Model) saveForm() (tea.Model, tea.Cmd) {
	due, err := time.ParseInLocation(dueLayout, strings.TrimSpace(m.form.due), time.Local)
	if err != nil {
		m.status = fmt.Sprintf("due invalid: %v", err)
		return m, nil
	}
	d := task.Draft{
		Title:     m.form.title,
		Details:   strings.TrimSpace(m.form.details),
		Due:       due,
		Reminder:  parseYN(m.form.reminder),
		Completed: parseYN(m.form.done),
	}
	note := ""
	if d.Reminder && due.Before(m.now()) {
		d.Reminder = false
		note = " (reminder off: due date is in the past)"
	}

	ctx := context.Background()
	id := m.form.taskID
	if id == "" {
		id, err = m.tasks.Create(ctx, d)
	} else {
		err = m.tasks.Update(ctx, id, d)
	}
	if err != nil {
		var verr *task.ValidationError
		if errors.As(err, &verr) {
			m.status = fmt.Sprintf("%s %s", verr.Field, verr.Msg)
		} else {
			m.status = fmt.Sprintf("save failed: %v", err)
		}
		return m, nil
	}

	m.form = nil
	m.mode = modeList
	m.input.Blur()
	m.reload()
	m.jumpTo(id)
	m.status = "Task saved" + note
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("duely"))
	if m.query != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  filter: %q", m.query)))
	}
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		if m.query != "" {
			b.WriteString("No matching tasks.")
		} else {
			b.WriteString(fmt.Sprintf("No tasks yet. Press '%s' to add one.", m.cfg.Keys.Add))
		}
	} else {
		b.WriteString(m.renderTaskList())
	}

	b.WriteString("\n---\n")

	switch {
	case m.form != nil:
		b.WriteString("Task editor (tab/shift+tab to move, enter to save/next, esc to cancel)")
		b.WriteString("\n\n")
		b.WriteString(m.renderFormBox())
		b.WriteString("\n")
		b.WriteString("Field: " + m.form.currentLabel())
		b.WriteString("\n")
		b.WriteString(m.input.View())
	case m.mode == modeSearch:
		b.WriteString(m.input.View())
	default:
		b.WriteString(m.renderDetailPanel())
	}

	b.WriteString("\n\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(renderHelp(m.cfg.Keys)))

	return b.String()
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s edit • %s toggle • %s delete • %s search • %s open reminder • %s quit",
		k.Up, k.Down, k.Add, k.Edit, keyName(k.Toggle), k.Delete, k.Search, k.Jump, k.Quit)
}

func keyName(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func (m Model) renderTaskList() string {
	now := m.now()
	var b strings.Builder
	var last task.Label
	for i, r := range m.rows {
		if r.label != last {
			if i > 0 {
				b.WriteString("\n")
			}
			style := headerStyle
			if r.label == task.Overdue {
				style = overdueStyle
			}
			b.WriteString(style.Render(string(r.label)))
			b.WriteString("\n")
			last = r.label
		}

		cursor := " "
		if m.cursor == i && m.mode == modeList {
			cursor = ">"
		}
		checkbox := "[ ]"
		if r.task.Completed {
			checkbox = "[x]"
		}
		bell := ""
		if r.task.Reminder && r.task.Due.After(now) {
			bell = " ⏰"
		}
		b.WriteString(fmt.Sprintf("%s %s %s%s %s\n", cursor, checkbox, r.task.Title, bell,
			dimStyle.Render(humanize.Time(r.task.Due))))
	}
	return b.String()
}

func (m Model) renderDetailPanel() string {
	if len(m.rows) == 0 {
		return "No task selected"
	}
	t := m.rows[clampCursor(m.cursor, len(m.rows))].task
	var b strings.Builder
	b.WriteString("Details\n")
	b.WriteString(fmt.Sprintf("Title    : %s\n", t.Title))
	b.WriteString(fmt.Sprintf("Details  : %s\n", emptyPlaceholder(t.Details)))
	b.WriteString(fmt.Sprintf("Due      : %s (%s)\n", t.Due.Format(dueLayout), humanize.Time(t.Due)))
	b.WriteString(fmt.Sprintf("Status   : %s\n", humanDone(t.Completed)))
	b.WriteString(fmt.Sprintf("Reminder : %t\n", t.Reminder))
	return b.String()
}

func (m Model) renderFormBox() string {
	values := m.form.values()
	var b strings.Builder
	for i, name := range formFields() {
		prefix := " "
		if i == m.form.index {
			prefix = ">"
		}
		b.WriteString(fmt.Sprintf("%s %-24s : %s\n", prefix, name, emptyPlaceholder(values[i])))
	}
	return b.String()
}

func (m Model) formPrompt() string {
	return fmt.Sprintf("Editing %s (field %d of %d). Enter to advance, Esc to cancel.",
		m.form.currentLabel(), m.form.index+1, len(formFields()))
}

// reload rebuilds the bucketed rows from the store, applying the search
// query.
func (m *Model) reload() {
	visible := task.Search(m.tasks.List(), m.query)
	m.rows = nil
	for _, g := range task.Bucket(visible, m.now()) {
		for _, t := range g.Tasks {
			m.rows = append(m.rows, row{label: g.Label, task: t})
		}
	}
	m.cursor = clampCursor(m.cursor, len(m.rows))
}

func (m *Model) jumpTo(id task.ID) {
	for i, r := range m.rows {
		if r.task.ID == id {
			m.cursor = i
			return
		}
	}
}

func formFields() []string {
	return []string{"title", "details", "due (YYYY-MM-DD HH:MM)", "reminder (y/n)", "done (y/n)"}
}

func (fs formState) values() []string {
	return []string{fs.title, fs.details, fs.due, fs.reminder, fs.done}
}

func (fs formState) currentLabel() string {
	return formFields()[fs.index]
}

func (fs formState) currentValue() string {
	return fs.values()[fs.index]
}

func (fs *formState) setCurrentValue(v string) {
	switch fs.index {
	case 0:
		fs.title = v
	case 1:
		fs.details = v
	case 2:
		fs.due = v
	case 3:
		fs.reminder = v
	case 4:
		fs.done = v
	}
}

func parseYN(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "y" || v == "yes" || v == "true" || v == "1"
}

func boolToYN(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func humanDone(done bool) string {
	if done {
		return "done"
	}
	return "pending"
}
