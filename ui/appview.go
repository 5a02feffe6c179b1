package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dashtui/api"
	"dashtui/chat"
	"dashtui/config"
	"dashtui/runs"
	"dashtui/storage"
)

// AppView is the top-level bubbletea model: the chat view plus the
// conversation manager, pipelines panel, and global search overlays.
type AppView struct {
	cfg     *config.Config
	client  *api.Client
	cache   *storage.ConversationCache
	version string

	// Conversation core. The transcript is mutated only through the
	// dispatcher and controller, always inside Update.
	transcript *chat.Transcript
	controller *chat.Controller
	dispatcher *chat.Dispatcher
	transport  *chat.Transport
	tracker    *runs.Tracker

	// events ferries transport callbacks onto the bubbletea loop.
	events chan tea.Msg

	// UI components
	viewport viewport.Model
	textarea textarea.Model

	width  int
	height int
	ready  bool

	connected      bool
	loadingSpinner spinner.Model

	// Cached markdown renders keyed by message id. Entries are dropped
	// whenever the transcript is replaced.
	rendered map[string]string

	showHelp bool

	// Conversation manager state
	showConversations   bool
	conversations       []api.Conversation
	selectedConvIdx     int
	convFilterMode      bool
	convFilterInput     textinput.Model
	filteredConvs       []api.Conversation
	convRenameMode      bool
	convRenameInput     textinput.Model
	confirmDeleteConvID string

	// Pipelines panel state
	showPipelines       bool
	selectedPipelineIdx int

	// Global search state
	showGlobalSearch  bool
	globalSearchInput textinput.Model
	globalSearchHits  []storage.MessageMatch
	selectedSearchIdx int

	statusNotice string
}

// NewAppView wires the conversation core to the backend client and cache.
func NewAppView(cfg *config.Config, client *api.Client, cache *storage.ConversationCache, version string) AppView {
	transcript := chat.NewTranscript()
	controller := chat.NewController(transcript)
	dispatcher := chat.NewDispatcher(transcript)

	events := make(chan tea.Msg, 256)

	var tokens chat.TokenSource
	if client != nil {
		tokens = func(ctx context.Context) (string, error) {
			return client.StreamToken(ctx)
		}
	}
	transport := chat.NewTransport(client.StreamURL(), cfg.AssistantArea, tokens)
	transport.OnFrame(func(raw []byte) {
		buf := make([]byte, len(raw))
		copy(buf, raw)
		select {
		case events <- serverFrameMsg{Raw: buf}:
		default:
			// UI hopelessly behind; dropping is safer than blocking the
			// read loop.
		}
	})
	transport.OnStateChange(func(connected bool) {
		select {
		case events <- streamStateMsg{Connected: connected}:
		default:
		}
	})

	dispatcher.OnConversationCreated = func(id string) {
		controller.AdoptCreated(id)
	}

	ta := textarea.New()
	ta.Placeholder = "Ask the assistant..."
	ta.Focus()
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	filterInput := textinput.New()
	filterInput.Placeholder = "filter"

	renameInput := textinput.New()
	renameInput.Placeholder = "new title"

	searchInput := textinput.New()
	searchInput.Placeholder = "search all conversations"

	return AppView{
		cfg:               cfg,
		client:            client,
		cache:             cache,
		transcript:        transcript,
		controller:        controller,
		dispatcher:        dispatcher,
		transport:         transport,
		tracker:           runs.NewTracker(),
		events:            events,
		textarea:          ta,
		loadingSpinner:    sp,
		rendered:          make(map[string]string),
		convFilterInput:   filterInput,
		convRenameInput:   renameInput,
		globalSearchInput: searchInput,
	}
}

// Init connects the stream and loads the conversation list (cache first,
// then backend).
func (a AppView) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		a.connectCmd(),
		a.loadCachedConversationsCmd(),
		a.fetchConversationsCmd(),
		a.waitForServer(),
	)
}

// waitForServer returns the next transport message; Update re-issues it
// after every delivery so frames keep flowing in FIFO order.
func (a AppView) waitForServer() tea.Cmd {
	return func() tea.Msg {
		return <-a.events
	}
}

func (a AppView) connectCmd() tea.Cmd {
	transport := a.transport
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return connectDoneMsg{Err: transport.Connect(ctx)}
	}
}

func (a AppView) loadCachedConversationsCmd() tea.Cmd {
	cache := a.cache
	return func() tea.Msg {
		if cache == nil {
			return nil
		}
		metas, err := cache.Conversations()
		if err != nil || len(metas) == 0 {
			return nil
		}
		list := make([]api.Conversation, len(metas))
		for i, m := range metas {
			list[i] = api.Conversation{
				ID:         m.ID,
				Title:      m.Title,
				CreatedAt:  m.CreatedAt,
				UpdatedAt:  m.UpdatedAt,
				IsArchived: m.IsArchived,
			}
		}
		return conversationsListMsg{Conversations: list, FromCache: true}
	}
}

func (a AppView) fetchConversationsCmd() tea.Cmd {
	client := a.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		list, err := client.ListConversations(ctx)
		return conversationsListMsg{Conversations: list, Err: err}
	}
}

// loadConversationCmd fetches a transcript for the token issued by
// Controller.Select. The controller decides later whether the result is
// still current.
func (a AppView) loadConversationCmd(token uint64, conversationID string) tea.Cmd {
	client := a.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		messages, err := client.Messages(ctx, conversationID)
		return conversationLoadedMsg{
			Token:          token,
			ConversationID: conversationID,
			Messages:       messages,
			Err:            err,
		}
	}
}

func (a AppView) cacheTranscriptCmd(conversationID string, messages []chat.Message) tea.Cmd {
	cache := a.cache
	return func() tea.Msg {
		if cache == nil {
			return nil
		}
		if err := cache.PutMessages(conversationID, messages); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[ui] cache write failed: %v", err)
		}
		return nil
	}
}

func (a AppView) executePipelineCmd(name, input string) tea.Cmd {
	client := a.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		result, err := client.ExecutePipeline(ctx, name, input)
		return pipelineRunMsg{Name: name, Result: result, Err: err}
	}
}

func (a AppView) globalSearchCmd(query string) tea.Cmd {
	cache := a.cache
	return func() tea.Msg {
		if cache == nil {
			return globalSearchResultsMsg{}
		}
		hits, err := cache.Search(query)
		return globalSearchResultsMsg{Results: hits, Err: err}
	}
}
