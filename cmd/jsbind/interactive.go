package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/jsbind/abi"
	"github.com/wippyai/jsbind/ir"
	"github.com/wippyai/jsbind/resolve"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	ownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type inspectorModel struct {
	err      error
	prog     *ir.Program
	filename string
	entries  []planEntry
	visible  []int
	filter   textinput.Model
	selected int
	state    inspectorState
}

type planEntry struct {
	plan     *resolve.FuncPlan
	imported bool
}

type inspectorState int

const (
	stateSelectFunc inspectorState = iota
	stateShowDetail
)

func newInspectorModel(filename string, prog *ir.Program) *inspectorModel {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	ti.Width = 30
	ti.Focus()
	return &inspectorModel{
		filename: filename,
		prog:     prog,
		filter:   ti,
		state:    stateSelectFunc,
	}
}

type plannedMsg struct {
	err     error
	entries []planEntry
}

func (m *inspectorModel) Init() tea.Cmd {
	return m.planProgram
}

func (m *inspectorModel) planProgram() tea.Msg {
	plan, err := resolve.NewResolver(m.prog).PlanProgram()
	if err != nil {
		return plannedMsg{err: err}
	}

	var entries []planEntry
	for _, fp := range plan.Exports {
		entries = append(entries, planEntry{plan: fp})
	}
	for _, fp := range plan.Imports {
		entries = append(entries, planEntry{plan: fp, imported: true})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].imported != entries[j].imported {
			return !entries[i].imported
		}
		return entries[i].plan.ExportName < entries[j].plan.ExportName
	})
	return plannedMsg{entries: entries}
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateSelectFunc && m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			if m.state == stateSelectFunc && len(m.visible) > 0 {
				m.state = stateShowDetail
			}
			return m, nil

		case "esc", "q":
			if m.state == stateShowDetail {
				m.state = stateSelectFunc
				return m, nil
			}
			if msg.String() == "esc" && m.filter.Value() != "" {
				m.filter.SetValue("")
				m.refilter()
				return m, nil
			}
			if msg.String() == "q" && m.filter.Value() == "" {
				return m, tea.Quit
			}
		}

	case plannedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.entries = msg.entries
		m.refilter()
		return m, nil
	}

	if m.state == stateSelectFunc {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.refilter()
		return m, cmd
	}
	return m, nil
}

func (m *inspectorModel) refilter() {
	needle := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, e := range m.entries {
		if needle == "" || strings.Contains(strings.ToLower(e.plan.ExportName), needle) ||
			strings.Contains(strings.ToLower(e.plan.Fn.Name), needle) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = len(m.visible) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *inspectorModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
	}
	if len(m.entries) == 0 {
		return "Resolving program..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("jsbind inspector"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for pos, idx := range m.visible {
			e := m.entries[idx]
			line := m.formatEntry(e)
			if pos == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("  no matches"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • type to filter • esc clear • q quit"))

	case stateShowDetail:
		e := m.entries[m.visible[m.selected]]
		m.writeDetail(&b, e)
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("esc back • ctrl+c quit"))
	}

	return b.String()
}

func (m *inspectorModel) formatEntry(e planEntry) string {
	fp := e.plan
	var params []string
	if fp.Self != nil {
		params = append(params, "self")
	}
	for _, a := range fp.Args {
		params = append(params, a.Name+": "+typeStyle.Render(a.Desc.String()))
	}
	result := ""
	if fp.Ret.Desc != nil {
		result = " -> " + typeStyle.Render(fp.Ret.Desc.String())
	}
	tag := ""
	if e.imported {
		tag = labelStyle.Render(" [import]")
	}
	if fp.Async {
		tag += labelStyle.Render(" [async]")
	}
	return funcStyle.Render(fp.ExportName) + "(" + strings.Join(params, ", ") + ")" + result + tag
}

func (m *inspectorModel) writeDetail(b *strings.Builder, e planEntry) {
	fp := e.plan

	b.WriteString(funcStyle.Render(fp.ExportName))
	b.WriteString("\n\n")

	role := "export"
	if e.imported {
		role = "import"
	}
	b.WriteString(labelStyle.Render("role:     "))
	b.WriteString(role)
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("kind:     "))
	b.WriteString(fp.Fn.Kind.String())
	if fp.Fn.Receiver != "" {
		b.WriteString(" on " + fp.Fn.Receiver)
	}
	b.WriteString("\n")
	if fp.Async {
		b.WriteString(labelStyle.Render("async:    "))
		b.WriteString("yes\n")
	}
	if fp.CanThrow {
		b.WriteString(labelStyle.Render("throws:   "))
		b.WriteString("yes\n")
	}

	b.WriteString(labelStyle.Render("raw abi:  "))
	b.WriteString("(" + slotString(fp.ParamSlots) + ") -> (" + slotString(fp.ResultSlots) + ")")
	if fp.NeedsRetArea {
		b.WriteString("  via ret area")
	}
	b.WriteString("\n\n")

	if fp.Self != nil {
		b.WriteString("  self  ")
		b.WriteString(typeStyle.Render(fp.Self.Desc.String()))
		b.WriteString("  ")
		b.WriteString(ownStyle.Render(fp.Self.Own.String()))
		b.WriteString("\n")
	}
	for _, a := range fp.Args {
		b.WriteString("  " + a.Name + "  ")
		b.WriteString(typeStyle.Render(a.Desc.String()))
		b.WriteString("  ")
		b.WriteString(a.Binding.String())
		b.WriteString("  ")
		b.WriteString(ownStyle.Render(a.Own.String()))
		b.WriteString("\n")
	}
	if fp.Ret.Desc != nil {
		b.WriteString("  ret   ")
		b.WriteString(typeStyle.Render(fp.Ret.Desc.String()))
		b.WriteString("  ")
		b.WriteString(ownStyle.Render(fp.Ret.Own.String()))
		b.WriteString("\n")
	}
}

func slotString(slots []abi.SlotKind) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

func runInteractive(filename string, prog *ir.Program) error {
	p := tea.NewProgram(newInspectorModel(filename, prog), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
