package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"dashtui/api"
)

// handleConversationsKey drives the conversation manager overlay.
func (a AppView) handleConversationsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Rename input captures everything until enter/esc.
	if a.convRenameMode {
		switch msg.String() {
		case "enter":
			a.convRenameMode = false
			title := strings.TrimSpace(a.convRenameInput.Value())
			list := a.filteredConvs
			if title == "" || a.selectedConvIdx >= len(list) {
				return a, nil
			}
			return a, a.renameConversationCmd(list[a.selectedConvIdx].ID, title)
		case "esc":
			a.convRenameMode = false
			return a, nil
		}
		var cmd tea.Cmd
		a.convRenameInput, cmd = a.convRenameInput.Update(msg)
		return a, cmd
	}

	// Filter input mirrors the same pattern.
	if a.convFilterMode {
		switch msg.String() {
		case "enter", "esc":
			a.convFilterMode = false
			if msg.String() == "esc" {
				a.convFilterInput.SetValue("")
				a.filteredConvs = a.conversations
			}
			return a, nil
		}

		var cmd tea.Cmd
		a.convFilterInput, cmd = a.convFilterInput.Update(msg)

		filterValue := a.convFilterInput.Value()
		if filterValue == "" {
			a.filteredConvs = a.conversations
		} else {
			targets := make([]string, len(a.conversations))
			for i, conv := range a.conversations {
				targets[i] = conv.Title
			}

			matches := fuzzy.Find(filterValue, targets)
			a.filteredConvs = make([]api.Conversation, len(matches))
			for i, match := range matches {
				a.filteredConvs[i] = a.conversations[match.Index]
			}
		}

		if a.selectedConvIdx >= len(a.filteredConvs) && len(a.filteredConvs) > 0 {
			a.selectedConvIdx = len(a.filteredConvs) - 1
		}
		return a, cmd
	}

	// Delete confirmation.
	if a.confirmDeleteConvID != "" {
		switch msg.String() {
		case "y":
			id := a.confirmDeleteConvID
			a.confirmDeleteConvID = ""
			return a, a.deleteConversationCmd(id)
		default:
			a.confirmDeleteConvID = ""
			return a, nil
		}
	}

	list := a.filteredConvs
	switch msg.String() {
	case "esc", "alt+c":
		a.showConversations = false
		return a, nil

	case "j", "down":
		if a.selectedConvIdx < len(list)-1 {
			a.selectedConvIdx++
		}
		return a, nil

	case "k", "up":
		if a.selectedConvIdx > 0 {
			a.selectedConvIdx--
		}
		return a, nil

	case "/":
		a.convFilterMode = true
		a.convFilterInput.SetValue("")
		a.convFilterInput.Focus()
		a.filteredConvs = a.conversations
		return a, textinput.Blink

	case "n":
		a.showConversations = false
		a.newChat()
		a.updateViewportContent(true)
		return a, nil

	case "R":
		if a.selectedConvIdx >= len(list) {
			return a, nil
		}
		a.convRenameMode = true
		a.convRenameInput.SetValue(list[a.selectedConvIdx].Title)
		a.convRenameInput.Focus()
		return a, textinput.Blink

	case "d":
		if a.selectedConvIdx >= len(list) {
			return a, nil
		}
		a.confirmDeleteConvID = list[a.selectedConvIdx].ID
		return a, nil

	case "enter":
		if a.selectedConvIdx >= len(list) {
			return a, nil
		}
		return a.openConversation(list[a.selectedConvIdx].ID)
	}

	return a, nil
}

// openConversation selects a conversation and starts its transcript fetch.
// Selection and replacement are decoupled: the pointer moves now, the
// transcript is replaced only when this selection's fetch resolves.
func (a AppView) openConversation(id string) (tea.Model, tea.Cmd) {
	token := a.controller.Select(id)
	return a, a.loadConversationCmd(token, id)
}

func (a AppView) renameConversationCmd(id, title string) tea.Cmd {
	client := a.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return conversationRenamedMsg{Err: client.RenameConversation(ctx, id, title)}
	}
}

func (a AppView) deleteConversationCmd(id string) tea.Cmd {
	client := a.client
	cache := a.cache
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := client.DeleteConversation(ctx, id)
		if err == nil && cache != nil {
			_ = cache.Delete(id)
		}
		return conversationDeletedMsg{ID: id, Err: err}
	}
}
