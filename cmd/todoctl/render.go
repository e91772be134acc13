package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BuzzLyutic/todo-api/internal/client"
	"github.com/BuzzLyutic/todo-api/internal/model"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Strikethrough(true)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func renderTask(t model.Task) string {
	mark, text := pendingStyle.Render("[ ]"), t.Text
	if t.Completed {
		mark, text = successStyle.Render("[x]"), completedStyle.Render(t.Text)
	}
	return fmt.Sprintf("%s %s %s", mutedStyle.Render(fmt.Sprintf("#%-4d", t.ID)), mark, text)
}

func renderTasks(items []model.Task, st client.Stats) string {
	lines := []string{headerStyle.Render("Tasks")}
	if len(items) == 0 {
		lines = append(lines, mutedStyle.Render("No tasks found"))
	}
	for _, t := range items {
		lines = append(lines, renderTask(t))
	}

	stats := fmt.Sprintf("%s  %s  %s",
		pendingStyle.Render(fmt.Sprintf("Pending: %d", st.Pending)),
		successStyle.Render(fmt.Sprintf("Completed: %d", st.Completed)),
		headerStyle.Render(fmt.Sprintf("Total: %d", st.Total)),
	)
	return panelStyle.Render(strings.Join(lines, "\n")) + "\n" + stats
}
