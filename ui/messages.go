package ui

import (
	"dashtui/api"
	"dashtui/chat"
	"dashtui/runs"
	"dashtui/storage"
)

// serverFrameMsg carries one raw frame from the stream into Update, where
// the dispatcher applies it. All transcript mutation happens on the
// bubbletea loop; the transport goroutine only ferries bytes.
type serverFrameMsg struct {
	Raw []byte
}

// streamStateMsg reports a transport connection state change.
type streamStateMsg struct {
	Connected bool
}

// connectDoneMsg is the result of an explicit Connect attempt.
type connectDoneMsg struct {
	Err error
}

type conversationsListMsg struct {
	Conversations []api.Conversation
	FromCache     bool
	Err           error
}

// conversationLoadedMsg delivers a fetched transcript along with the fetch
// token issued at selection time. Stale tokens are discarded by the
// controller.
type conversationLoadedMsg struct {
	Token          uint64
	ConversationID string
	Messages       []chat.Message
	Err            error
}

type conversationRenamedMsg struct {
	Err error
}

type conversationDeletedMsg struct {
	ID  string
	Err error
}

// pipelineRunMsg is the outcome of one pipeline execution request.
type pipelineRunMsg struct {
	Name   string
	Result runs.Result
	Err    error
}

type markdownRenderedMsg struct {
	MessageID string
	Rendered  string
}

type globalSearchResultsMsg struct {
	Results []storage.MessageMatch
	Err     error
}

type clipboardCopiedMsg struct {
	Err error
}
