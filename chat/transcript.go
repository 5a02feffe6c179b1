package chat

import (
	"time"

	"github.com/google/uuid"
)

// Transcript owns the ordered message list for the active conversation and
// the state machine for the in-progress assistant message. All mutation goes
// through its methods; at most one message is streaming at any time, and the
// streaming flag only ever transitions true -> false.
//
// Events that arrive with no matching target (a text_delta with no current
// message, a tool_result for an unknown id) are deliberate no-ops: after a
// conversation switch the server may keep emitting frames for the abandoned
// stream, and those must not disturb the new transcript. Dropped keeps the
// count observable.
type Transcript struct {
	messages   []Message
	currentID  string
	processing bool
	dropped    int
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Messages returns the transcript in order. The slice is a copy; callers
// cannot mutate transcript state through it.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Processing reports whether a send is awaiting its final event.
func (t *Transcript) Processing() bool {
	return t.processing
}

// CurrentMessageID returns the id of the streaming assistant message, or ""
// when the transcript is idle.
func (t *Transcript) CurrentMessageID() string {
	return t.currentID
}

// Dropped returns how many events were silently ignored for lack of a target.
func (t *Transcript) Dropped() int {
	return t.dropped
}

// AppendUser appends a user message immediately (optimistic - it is never
// rolled back) and marks the transcript as processing.
func (t *Transcript) AppendUser(content string) Message {
	msg := Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
	t.messages = append(t.messages, msg)
	t.processing = true
	return msg
}

// StartAssistant creates the streaming assistant message and makes it
// current. A model_request_start while a message is already streaming
// finalizes the old one first so the single-streaming-message invariant
// holds.
func (t *Transcript) StartAssistant() Message {
	if t.currentID != "" {
		t.Finalize()
	}
	msg := Message{
		ID:          uuid.New().String(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
	t.messages = append(t.messages, msg)
	t.currentID = msg.ID
	return msg
}

// AppendDelta appends streamed content to the current message. No current
// message means the delta belongs to an abandoned stream: no-op.
func (t *Transcript) AppendDelta(content string) {
	i := t.currentIndex()
	if i < 0 {
		t.dropped++
		return
	}
	t.messages[i].Content += content
}

// Finalize ends streaming on the current message and clears the current
// pointer. Safe to call when idle.
func (t *Transcript) Finalize() {
	if i := t.currentIndex(); i >= 0 {
		t.messages[i].IsStreaming = false
	}
	t.currentID = ""
	t.processing = false
}

// FinalizeError appends an error marker to the current message and ends
// streaming. With no current message the marker has no target and the event
// is a counted drop like any other orphan; processing still ends so a send
// cannot hang on a late error.
func (t *Transcript) FinalizeError(errMsg string) {
	i := t.currentIndex()
	if i < 0 {
		t.dropped++
		t.processing = false
		return
	}
	t.messages[i].Content += "\n\n[error: " + errMsg + "]"
	t.messages[i].IsStreaming = false
	t.currentID = ""
	t.processing = false
}

// EndProcessing clears the processing flag. Idempotent with Finalize and
// FinalizeError; if the server ends the exchange with a bare complete while
// a message is still streaming, the message is finalized too so the flag
// cannot outlive the stream. Consequence: a delta arriving after a bare
// complete is a counted drop, not appended content.
func (t *Transcript) EndProcessing() {
	if t.currentID != "" {
		t.Finalize()
		return
	}
	t.processing = false
}

// Replace swaps the entire transcript for another conversation's messages.
// Any in-progress streaming message is discarded with no special-casing.
// Only the switch controller calls this.
func (t *Transcript) Replace(messages []Message) {
	t.messages = make([]Message, len(messages))
	copy(t.messages, messages)
	t.currentID = ""
	t.processing = false
}

// Clear empties the transcript for a brand-new chat.
func (t *Transcript) Clear() {
	t.Replace(nil)
}

func (t *Transcript) currentIndex() int {
	if t.currentID == "" {
		return -1
	}
	for i := range t.messages {
		if t.messages[i].ID == t.currentID {
			return i
		}
	}
	return -1
}
