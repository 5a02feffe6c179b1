package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"dashtui/chat"
	"dashtui/config"
	"dashtui/runs"
)

var errNoReply = errors.New("no finished assistant reply to copy")

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.SetContent("")
	return vp
}

func (a AppView) View() string {
	if !a.ready {
		return "Starting dashtui..."
	}

	switch {
	case a.showConversations:
		return a.viewConversations()
	case a.showPipelines:
		return a.viewPipelines()
	case a.showGlobalSearch:
		return a.viewGlobalSearch()
	case a.showHelp:
		return a.viewHelp()
	}

	var b strings.Builder
	b.WriteString(a.headerLine())
	b.WriteString("\n")
	b.WriteString(a.viewport.View())
	b.WriteString("\n")
	b.WriteString(a.textarea.View())
	b.WriteString("\n")
	b.WriteString(a.statusLine())
	return b.String()
}

func (a AppView) headerLine() string {
	title := "dashtui"
	if conv, ok := a.conversationByID(a.controller.SelectedID()); ok && conv.Title != "" {
		title = conv.Title
	} else if a.controller.SelectedID() == "" {
		title = "new chat"
	}
	return TitleStyle.Render(truncate(title, a.width))
}

func (a AppView) statusLine() string {
	conn := ErrorStyle.Render("○ offline")
	if a.connected {
		conn = UserStyle.Render("● connected")
	}

	help := FormatFooter(
		"enter", "Send",
		"^n", "New chat",
		"M-c", "Conversations",
		"M-p", "Pipelines",
		"M-s", "Search",
		"M-h", "Help",
	)
	if a.statusNotice != "" {
		help = DimStyle.Render(a.statusNotice)
	}
	return StatusStyle.Render(conn + "  " + help)
}

// updateViewportContent rebuilds the transcript view. goToBottom follows the
// stream; scroll position is preserved otherwise.
func (a *AppView) updateViewportContent(goToBottom bool) {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.buildTranscriptView())
	if goToBottom {
		a.viewport.GotoBottom()
	}
}

func (a AppView) buildTranscriptView() string {
	msgs := a.transcript.Messages()
	if len(msgs) == 0 {
		return DimStyle.Render("\n  Start a conversation, or press M-p to run a pipeline.")
	}

	var b strings.Builder
	for _, msg := range msgs {
		timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

		switch msg.Role {
		case chat.RoleUser:
			bar := UserStyle.Render("┃")
			b.WriteString(fmt.Sprintf("%s %s %s\n", bar, timestamp, UserStyle.Render("You")))
			for _, line := range strings.Split(msg.Content, "\n") {
				b.WriteString(fmt.Sprintf("%s %s\n", bar, line))
			}
			b.WriteString("\n")

		case chat.RoleAssistant:
			b.WriteString(fmt.Sprintf("%s %s\n", timestamp, AssistantStyle.Render("Assistant")))
			for _, tc := range msg.ToolCalls {
				b.WriteString(a.renderToolCall(tc))
			}
			content := msg.Content
			if !msg.IsStreaming {
				if cached, ok := a.rendered[msg.ID]; ok {
					content = cached
				}
			}
			if msg.IsStreaming {
				if content == "" && len(msg.ToolCalls) == 0 {
					content = a.loadingSpinner.View() + DimStyle.Render(" waiting for response...")
				} else {
					content += "▌"
				}
			}
			b.WriteString(content)
			b.WriteString("\n\n")
		}
	}

	if a.transcript.Processing() && a.transcript.CurrentMessageID() == "" {
		b.WriteString(a.loadingSpinner.View() + DimStyle.Render(" waiting for response...\n"))
	}
	return b.String()
}

func (a AppView) renderToolCall(tc chat.ToolCall) string {
	var status string
	switch tc.Status {
	case chat.ToolStatusCompleted:
		status = UserStyle.Render("done")
	case chat.ToolStatusFailed:
		status = ErrorStyle.Render("failed")
	case chat.ToolStatusRunning:
		status = SelectedStyle.Render("running")
	default:
		status = DimStyle.Render(tc.Status)
	}

	line := fmt.Sprintf("  🔧 %s %s", tc.Name, status)
	if tc.Result != "" && tc.Status != chat.ToolStatusRunning {
		preview := strings.ReplaceAll(tc.Result, "\n", " ")
		line += DimStyle.Render(" → " + runewidth.Truncate(preview, 80, "..."))
	}
	return line + "\n"
}

// renderMarkdownAsync renders a finalized message off the update loop; the
// result lands back as a markdownRenderedMsg keyed by message id, so a
// transcript replace in between simply orphans the render.
func (a AppView) renderMarkdownAsync(messageID, content string) tea.Cmd {
	width := a.width - 4
	if width < 20 {
		width = 80
	}
	return func() tea.Msg {
		start := time.Now()
		rendered := string(markdown.Render(content, width, 0))
		if config.DebugLog != nil {
			config.DebugLog.Printf("[ui] markdown render for %s took %v", messageID, time.Since(start))
		}
		return markdownRenderedMsg{MessageID: messageID, Rendered: strings.TrimRight(rendered, "\n")}
	}
}

func (a AppView) viewPipelines() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Pipelines"))
	b.WriteString("\n\n")

	if len(a.cfg.Pipelines) == 0 {
		b.WriteString(DimStyle.Render("  No pipelines configured. Add [[pipeline]] blocks to settings.toml.\n"))
	}

	for i, p := range a.cfg.Pipelines {
		st := a.tracker.Get(p.Name)

		cursor := "  "
		nameStyle := AssistantStyle
		if i == a.selectedPipelineIdx {
			cursor = SelectedStyle.Render("> ")
			nameStyle = SelectedStyle
		}

		b.WriteString(fmt.Sprintf("%s%s %s %s\n", cursor,
			nameStyle.Render(runewidth.FillRight(p.Name, 24)),
			a.renderRunStatus(st),
			DimStyle.Render(p.Description)))

		if i == a.selectedPipelineIdx {
			switch st.Status {
			case runs.StatusSuccess:
				if st.Result != nil && st.Result.Output != "" {
					b.WriteString(indentBlock(truncate(st.Result.Output, 400), "    "))
				}
			case runs.StatusError:
				b.WriteString(indentBlock(ErrorStyle.Render(truncate(st.Message, 400)), "    "))
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(FormatFooter("j/k", "Navigate", "Enter", "Run", "r", "Reset", "Esc", "Close"))
	return b.String()
}

func (a AppView) renderRunStatus(st runs.State) string {
	switch st.Status {
	case runs.StatusRunning:
		return SelectedStyle.Render("[running]")
	case runs.StatusSuccess:
		return UserStyle.Render("[success]")
	case runs.StatusError:
		return ErrorStyle.Render("[error]  ")
	default:
		return DimStyle.Render("[idle]   ")
	}
}

func (a AppView) viewConversations() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Conversations"))
	b.WriteString("\n\n")

	if a.convFilterMode {
		b.WriteString("  / " + a.convFilterInput.View() + "\n\n")
	}

	list := a.filteredConvs
	if len(list) == 0 {
		b.WriteString(DimStyle.Render("  No conversations.\n"))
	}

	for i, conv := range list {
		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}

		cursor := "  "
		style := AssistantStyle
		if i == a.selectedConvIdx {
			cursor = SelectedStyle.Render("> ")
			style = SelectedStyle
		}
		marker := " "
		if conv.ID == a.controller.SelectedID() {
			marker = UserStyle.Render("*")
		}

		line := fmt.Sprintf("%s%s %s %s", cursor, marker,
			style.Render(runewidth.Truncate(title, 48, "...")),
			DimStyle.Render(conv.UpdatedAt.Format("Jan 2 15:04")))

		if a.convRenameMode && i == a.selectedConvIdx {
			line = fmt.Sprintf("%s%s %s", cursor, marker, a.convRenameInput.View())
		}
		if a.confirmDeleteConvID == conv.ID {
			line += ErrorStyle.Render("  delete? y/n")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(FormatFooter("j/k", "Navigate", "Enter", "Open", "n", "New", "R", "Rename", "d", "Delete", "/", "Filter", "Esc", "Close"))
	return b.String()
}

func (a AppView) viewHelp() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("dashtui " + a.version))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"enter", "Send message"},
		{"ctrl+n", "New chat"},
		{"ctrl+r", "Reconnect stream"},
		{"alt+c", "Conversation manager"},
		{"alt+p", "Pipelines panel"},
		{"alt+s", "Search all conversations"},
		{"alt+y", "Copy last reply"},
		{"alt+h", "This help"},
		{"ctrl+c", "Quit"},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			HighlightStyle.Render(runewidth.FillRight(row[0], 8)), row[1]))
	}

	if d := a.transcript.Dropped() + a.dispatcher.Dropped(); d > 0 {
		b.WriteString(DimStyle.Render(fmt.Sprintf("\n  %d stream event(s) dropped this session\n", d)))
	}

	b.WriteString("\n")
	b.WriteString(FormatFooter("Esc", "Close"))
	return b.String()
}

func (a AppView) viewGlobalSearch() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Search all conversations"))
	b.WriteString("\n\n")
	b.WriteString("  " + a.globalSearchInput.View() + "\n\n")

	for i, hit := range a.globalSearchHits {
		if i >= 20 {
			b.WriteString(DimStyle.Render(fmt.Sprintf("  ... %d more\n", len(a.globalSearchHits)-20)))
			break
		}
		cursor := "  "
		style := AssistantStyle
		if i == a.selectedSearchIdx {
			cursor = SelectedStyle.Render("> ")
			style = SelectedStyle
		}
		title := hit.ConversationTitle
		if title == "" {
			title = "(untitled)"
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", cursor,
			style.Render(runewidth.Truncate(title, 32, "...")),
			DimStyle.Render(runewidth.Truncate(hit.Preview, 60, "..."))))
	}

	b.WriteString("\n")
	b.WriteString(FormatFooter("Enter", "Open conversation", "j/k", "Navigate", "Esc", "Close"))
	return b.String()
}

func truncate(s string, max int) string {
	if max <= 3 {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}

func indentBlock(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(prefix + line + "\n")
	}
	return b.String()
}
