package ui

import (
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"dashtui/api"
	"dashtui/chat"
	"dashtui/config"
	"dashtui/storage"
)

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return a.handleResize(msg)

	case spinner.TickMsg:
		if !a.transcript.Processing() {
			return a, nil
		}
		var cmd tea.Cmd
		a.loadingSpinner, cmd = a.loadingSpinner.Update(msg)
		a.updateViewportContent(false)
		return a, cmd

	case serverFrameMsg:
		return a.handleServerFrame(msg)

	case streamStateMsg:
		a.connected = msg.Connected
		if !msg.Connected {
			a.statusNotice = "stream disconnected - press ctrl+r to reconnect"
		} else {
			a.statusNotice = ""
		}
		return a, a.waitForServer()

	case connectDoneMsg:
		if msg.Err != nil {
			a.statusNotice = "offline: " + msg.Err.Error()
			if config.DebugLog != nil {
				config.DebugLog.Printf("[ui] connect failed: %v", msg.Err)
			}
		}
		return a, nil

	case conversationsListMsg:
		return a.handleConversationsList(msg)

	case conversationLoadedMsg:
		return a.handleConversationLoaded(msg)

	case conversationRenamedMsg:
		if msg.Err != nil {
			a.statusNotice = "rename failed: " + msg.Err.Error()
			return a, nil
		}
		return a, a.fetchConversationsCmd()

	case conversationDeletedMsg:
		if msg.Err != nil {
			a.statusNotice = "delete failed: " + msg.Err.Error()
			return a, nil
		}
		if a.controller.SelectedID() == msg.ID {
			a.newChat()
		}
		return a, a.fetchConversationsCmd()

	case pipelineRunMsg:
		if msg.Err != nil {
			a.tracker.Fail(msg.Name, msg.Err.Error())
		} else {
			a.tracker.Complete(msg.Name, msg.Result)
		}
		return a, nil

	case markdownRenderedMsg:
		a.rendered[msg.MessageID] = msg.Rendered
		a.updateViewportContent(false)
		return a, nil

	case globalSearchResultsMsg:
		if msg.Err != nil {
			a.statusNotice = "search failed: " + msg.Err.Error()
			return a, nil
		}
		a.globalSearchHits = msg.Results
		a.selectedSearchIdx = 0
		return a, nil

	case clipboardCopiedMsg:
		if msg.Err != nil {
			a.statusNotice = "copy failed: " + msg.Err.Error()
		} else {
			a.statusNotice = "copied last reply"
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a AppView) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	a.width = msg.Width
	a.height = msg.Height

	headerHeight := 1
	footerHeight := a.textarea.Height() + 2

	if !a.ready {
		a.viewport = newViewport(msg.Width, msg.Height-headerHeight-footerHeight)
		a.ready = true
	} else {
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - headerHeight - footerHeight
	}
	a.textarea.SetWidth(msg.Width - 2)

	a.updateViewportContent(false)
	return a, nil
}

// handleServerFrame applies one stream frame to the transcript and re-arms
// the wait. This is the single place server events mutate state.
func (a AppView) handleServerFrame(msg serverFrameMsg) (tea.Model, tea.Cmd) {
	wasProcessing := a.transcript.Processing()
	a.dispatcher.HandleFrame(msg.Raw)

	cmds := []tea.Cmd{a.waitForServer()}

	// A reply just started streaming; keep the spinner ticking.
	if !wasProcessing && a.transcript.Processing() {
		cmds = append(cmds, a.loadingSpinner.Tick)
	}

	// A reply just finalized; render its markdown and refresh the cache
	// copy of this conversation.
	if wasProcessing && !a.transcript.Processing() {
		if id, content, ok := a.lastFinalizedAssistant(); ok {
			cmds = append(cmds, a.renderMarkdownAsync(id, content))
		}
		if convID := a.controller.SelectedID(); convID != "" {
			cmds = append(cmds, a.cacheTranscriptCmd(convID, a.transcript.Messages()))
		}
	}

	a.updateViewportContent(true)
	return a, tea.Batch(cmds...)
}

func (a AppView) handleConversationsList(msg conversationsListMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[ui] conversation list fetch failed: %v", msg.Err)
		}
		// Keep whatever the cache gave us; the backend being down must not
		// blank the list.
		return a, nil
	}
	if msg.FromCache && len(a.conversations) > 0 {
		return a, nil
	}

	a.conversations = msg.Conversations
	a.filteredConvs = msg.Conversations
	if a.selectedConvIdx >= len(msg.Conversations) {
		a.selectedConvIdx = 0
	}

	if msg.FromCache {
		return a, nil
	}
	metas := make([]storage.ConversationMeta, len(msg.Conversations))
	for i, conv := range msg.Conversations {
		metas[i] = storage.ConversationMeta{
			ID:         conv.ID,
			Title:      conv.Title,
			CreatedAt:  conv.CreatedAt,
			UpdatedAt:  conv.UpdatedAt,
			IsArchived: conv.IsArchived,
		}
	}
	cache := a.cache
	return a, func() tea.Msg {
		if cache != nil {
			if err := cache.PutConversations(metas); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[ui] cache conversations failed: %v", err)
			}
		}
		return nil
	}
}

func (a AppView) handleConversationLoaded(msg conversationLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		a.statusNotice = "failed to load conversation: " + msg.Err.Error()
		return a, nil
	}

	// Resolve discards results whose token is no longer the latest
	// selection, so a slow fetch can never overwrite a newer one.
	if !a.controller.Resolve(msg.Token, msg.Messages) {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[ui] discarded stale fetch for %s", msg.ConversationID)
		}
		return a, nil
	}

	a.rendered = make(map[string]string)
	a.showConversations = false
	a.updateViewportContent(true)

	cmds := []tea.Cmd{a.cacheTranscriptCmd(msg.ConversationID, msg.Messages)}
	// Render markdown newest-first since the viewport shows the bottom.
	msgs := a.transcript.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant && msgs[i].Content != "" {
			cmds = append(cmds, a.renderMarkdownAsync(msgs[i].ID, msgs[i].Content))
		}
	}
	return a, tea.Batch(cmds...)
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Overlays capture keys first.
	if a.showConversations {
		return a.handleConversationsKey(msg)
	}
	if a.showPipelines {
		return a.handlePipelinesKey(msg)
	}
	if a.showGlobalSearch {
		return a.handleGlobalSearchKey(msg)
	}
	if a.showHelp {
		switch msg.String() {
		case "esc", "alt+h", "q":
			a.showHelp = false
		}
		return a, nil
	}

	switch msg.String() {
	case "ctrl+c":
		a.transport.Disconnect()
		if a.cache != nil {
			_ = a.cache.Close()
		}
		return a, tea.Quit

	case "ctrl+r":
		if !a.connected {
			return a, a.connectCmd()
		}
		return a, nil

	case "ctrl+n":
		a.newChat()
		a.updateViewportContent(true)
		return a, nil

	case "alt+c":
		a.showConversations = true
		a.convFilterMode = false
		a.convRenameMode = false
		a.confirmDeleteConvID = ""
		a.filteredConvs = a.conversations
		return a, a.fetchConversationsCmd()

	case "alt+p":
		a.showPipelines = true
		a.selectedPipelineIdx = 0
		return a, nil

	case "alt+s":
		a.showGlobalSearch = true
		a.globalSearchInput.SetValue("")
		a.globalSearchInput.Focus()
		a.globalSearchHits = nil
		return a, nil

	case "alt+y":
		return a, a.copyLastReplyCmd()

	case "alt+h":
		a.showHelp = true
		return a, nil

	case "enter":
		return a.handleSend()
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	cmds = append(cmds, cmd)
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// handleSend runs the send pipeline: optimistic local append, processing
// flag, transmit. The append happens whether or not the stream is up.
func (a AppView) handleSend() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(a.textarea.Value())
	if text == "" {
		return a, nil
	}
	if a.transcript.Processing() {
		a.statusNotice = "still waiting for the previous reply"
		return a, nil
	}

	_, sent := a.controller.Send(text, a.transport)
	if !sent {
		a.statusNotice = "not connected - message kept locally"
	} else {
		a.statusNotice = ""
	}

	a.textarea.Reset()
	a.updateViewportContent(true)
	return a, a.loadingSpinner.Tick
}

// newChat clears the selection and transcript unconditionally; any stream
// still finishing for the old chat becomes no-ops in the dispatcher.
func (a *AppView) newChat() {
	a.controller.NewChat()
	a.rendered = make(map[string]string)
	a.statusNotice = ""
}

func (a AppView) copyLastReplyCmd() tea.Cmd {
	msgs := a.transcript.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant && !msgs[i].IsStreaming {
			content := msgs[i].Content
			return func() tea.Msg {
				return clipboardCopiedMsg{Err: clipboard.WriteAll(content)}
			}
		}
	}
	return func() tea.Msg {
		return clipboardCopiedMsg{Err: errNoReply}
	}
}

// lastFinalizedAssistant returns the newest assistant message that has
// finished streaming and has no cached render yet.
func (a AppView) lastFinalizedAssistant() (id, content string, ok bool) {
	msgs := a.transcript.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != chat.RoleAssistant || m.IsStreaming {
			continue
		}
		if _, done := a.rendered[m.ID]; done || m.Content == "" {
			return "", "", false
		}
		return m.ID, m.Content, true
	}
	return "", "", false
}

// conversationByID finds a conversation in the loaded list.
func (a AppView) conversationByID(id string) (api.Conversation, bool) {
	for _, conv := range a.conversations {
		if conv.ID == id {
			return conv, true
		}
	}
	return api.Conversation{}, false
}
