package chat

import (
	"encoding/json"
	"errors"
)

// EventType classifies frames pushed by the backend over the stream.
type EventType string

const (
	// EventConversationCreated carries the server-assigned id for a chat
	// started without one.
	EventConversationCreated EventType = "conversation_created"

	// EventMessageSaved acknowledges persistence of the sent message.
	EventMessageSaved EventType = "message_saved"

	// EventModelRequestStart marks the beginning of an assistant reply.
	EventModelRequestStart EventType = "model_request_start"

	// EventTextDelta appends streamed content to the current reply.
	EventTextDelta EventType = "text_delta"

	// EventToolCall announces a tool invocation within the current reply.
	EventToolCall EventType = "tool_call"

	// EventToolResult delivers the outcome of an earlier tool call.
	EventToolResult EventType = "tool_result"

	// EventFinalResult ends streaming for the current reply.
	EventFinalResult EventType = "final_result"

	// EventError reports a server-side failure for the current exchange.
	EventError EventType = "error"

	// EventComplete ends the exchange; idempotent with final_result/error.
	EventComplete EventType = "complete"
)

// Event is one parsed frame: a type tag plus the fields that type uses.
// Fields not belonging to the type are left at their zero values.
type Event struct {
	Type           EventType
	ConversationID string
	Content        string
	ToolCallID     string
	ToolName       string
	ToolArgs       map[string]any
	IsError        bool
}

type frame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

type framePayload struct {
	ConversationID string         `json:"conversation_id"`
	Content        string         `json:"content"`
	ToolCallID     string         `json:"tool_call_id"`
	ToolName       string         `json:"tool_name"`
	Arguments      map[string]any `json:"arguments"`
	IsError        bool           `json:"is_error"`
	Error          string         `json:"error"`
}

var errUnknownEvent = errors.New("unknown event type")

// ParseFrame decodes one wire frame. Malformed JSON and unrecognized types
// return an error so the dispatcher can drop the frame without applying it.
func ParseFrame(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, err
	}

	var p framePayload
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return Event{}, err
		}
	}

	ev := Event{Type: f.Type}
	switch f.Type {
	case EventConversationCreated:
		ev.ConversationID = p.ConversationID
	case EventMessageSaved, EventModelRequestStart, EventFinalResult, EventComplete:
		// No payload fields needed.
	case EventTextDelta:
		ev.Content = p.Content
	case EventToolCall:
		ev.ToolCallID = p.ToolCallID
		ev.ToolName = p.ToolName
		ev.ToolArgs = p.Arguments
	case EventToolResult:
		ev.ToolCallID = p.ToolCallID
		ev.Content = p.Content
		ev.IsError = p.IsError
	case EventError:
		ev.Content = p.Error
		if ev.Content == "" {
			ev.Content = p.Content
		}
	default:
		return Event{}, errUnknownEvent
	}
	return ev, nil
}

// Dispatcher routes parsed events into the transcript. It holds no state of
// its own beyond a drop counter; transcript and tool-call mutation stays with
// the transcript, and conversation identity with the controller via the
// OnConversationCreated hook.
type Dispatcher struct {
	transcript *Transcript
	dropped    int

	// OnConversationCreated fires when the server assigns an id to a new
	// chat. Optional.
	OnConversationCreated func(id string)

	// OnUpdate fires after any event that changed transcript state, so an
	// observer can re-render. Optional.
	OnUpdate func()
}

// NewDispatcher returns a dispatcher bound to one transcript.
func NewDispatcher(t *Transcript) *Dispatcher {
	return &Dispatcher{transcript: t}
}

// Dropped returns how many frames were discarded as malformed or unknown.
func (d *Dispatcher) Dropped() int {
	return d.dropped
}

// HandleFrame parses and applies one raw frame. It never returns an error:
// a frame that cannot be parsed or applied is dropped, because event loss
// must not crash the client.
func (d *Dispatcher) HandleFrame(raw []byte) {
	ev, err := ParseFrame(raw)
	if err != nil {
		d.dropped++
		return
	}
	d.Apply(ev)
}

// Apply routes one event. Events whose target is gone (stale stream after a
// switch) fall through as no-ops inside the transcript.
func (d *Dispatcher) Apply(ev Event) {
	switch ev.Type {
	case EventConversationCreated:
		if d.OnConversationCreated != nil {
			d.OnConversationCreated(ev.ConversationID)
		}
		return
	case EventMessageSaved:
		return
	case EventModelRequestStart:
		d.transcript.StartAssistant()
	case EventTextDelta:
		d.transcript.AppendDelta(ev.Content)
	case EventToolCall:
		d.transcript.AddToolCall(ev.ToolCallID, ev.ToolName, ev.ToolArgs)
	case EventToolResult:
		d.transcript.ResolveToolCall(ev.ToolCallID, ev.Content, ev.IsError)
	case EventFinalResult:
		d.transcript.Finalize()
	case EventError:
		d.transcript.FinalizeError(ev.Content)
	case EventComplete:
		d.transcript.EndProcessing()
	default:
		d.dropped++
		return
	}
	if d.OnUpdate != nil {
		d.OnUpdate()
	}
}
