package chat_test

import (
	"reflect"
	"testing"

	"dashtui/chat"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want chat.Event
	}{
		{
			"conversation created",
			`{"type":"conversation_created","data":{"conversation_id":"c-9"}}`,
			chat.Event{Type: chat.EventConversationCreated, ConversationID: "c-9"},
		},
		{
			"message saved",
			`{"type":"message_saved","data":{}}`,
			chat.Event{Type: chat.EventMessageSaved},
		},
		{
			"model request start",
			`{"type":"model_request_start"}`,
			chat.Event{Type: chat.EventModelRequestStart},
		},
		{
			"text delta",
			`{"type":"text_delta","data":{"content":"Hi"}}`,
			chat.Event{Type: chat.EventTextDelta, Content: "Hi"},
		},
		{
			"tool result",
			`{"type":"tool_result","data":{"tool_call_id":"t1","content":"42","is_error":false}}`,
			chat.Event{Type: chat.EventToolResult, ToolCallID: "t1", Content: "42"},
		},
		{
			"tool result error",
			`{"type":"tool_result","data":{"tool_call_id":"t1","content":"timeout","is_error":true}}`,
			chat.Event{Type: chat.EventToolResult, ToolCallID: "t1", Content: "timeout", IsError: true},
		},
		{
			"final result",
			`{"type":"final_result","data":{"content":"ignored"}}`,
			chat.Event{Type: chat.EventFinalResult},
		},
		{
			"error with error field",
			`{"type":"error","data":{"error":"model overloaded"}}`,
			chat.Event{Type: chat.EventError, Content: "model overloaded"},
		},
		{
			"error with content fallback",
			`{"type":"error","data":{"content":"bad request"}}`,
			chat.Event{Type: chat.EventError, Content: "bad request"},
		},
		{
			"complete",
			`{"type":"complete"}`,
			chat.Event{Type: chat.EventComplete},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chat.ParseFrame([]byte(tt.raw))
			if err != nil {
				t.Fatalf("ParseFrame() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseFrame() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFrameToolCall(t *testing.T) {
	raw := `{"type":"tool_call","data":{"tool_call_id":"t1","tool_name":"lookup","arguments":{"query":"weather"}}}`
	got, err := chat.ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFrame() error: %v", err)
	}
	if got.ToolCallID != "t1" || got.ToolName != "lookup" {
		t.Errorf("ParseFrame() = %+v", got)
	}
	if got.ToolArgs["query"] != "weather" {
		t.Errorf("arguments = %v, want query=weather", got.ToolArgs)
	}
}

func TestParseFrameRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"type":"text_delta","data":`},
		{"unknown type", `{"type":"reticulate_splines","data":{}}`},
		{"malformed payload", `{"type":"text_delta","data":"not an object"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := chat.ParseFrame([]byte(tt.raw)); err == nil {
				t.Error("ParseFrame() accepted a frame it should reject")
			}
		})
	}
}

func TestHandleFrameDropsBadFrames(t *testing.T) {
	tr := chat.NewTranscript()
	tr.AppendUser("Hello")
	tr.StartAssistant()
	tr.AppendDelta("fine so far")
	d := chat.NewDispatcher(tr)

	d.HandleFrame([]byte(`not json at all`))
	d.HandleFrame([]byte(`{"type":"mystery","data":{}}`))

	if d.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", d.Dropped())
	}
	if got := tr.Messages()[1].Content; got != "fine so far" {
		t.Errorf("bad frames changed content: %q", got)
	}
}

func TestDispatcherConversationCreated(t *testing.T) {
	tr := chat.NewTranscript()
	d := chat.NewDispatcher(tr)
	c := chat.NewController(tr)
	d.OnConversationCreated = func(id string) { c.AdoptCreated(id) }

	d.HandleFrame([]byte(`{"type":"conversation_created","data":{"conversation_id":"c-42"}}`))

	if c.SelectedID() != "c-42" {
		t.Errorf("SelectedID() = %s, want c-42", c.SelectedID())
	}
}

// Full exchange: send, stream two deltas, run a tool, finalize, complete.
func TestDispatcherFullExchange(t *testing.T) {
	tr := chat.NewTranscript()
	d := chat.NewDispatcher(tr)
	updates := 0
	d.OnUpdate = func() { updates++ }

	tr.AppendUser("Hello")
	frames := []string{
		`{"type":"message_saved","data":{}}`,
		`{"type":"model_request_start"}`,
		`{"type":"text_delta","data":{"content":"Hi"}}`,
		`{"type":"text_delta","data":{"content":" there"}}`,
		`{"type":"tool_call","data":{"tool_call_id":"t1","tool_name":"lookup","arguments":{"q":"6*7"}}}`,
		`{"type":"tool_result","data":{"tool_call_id":"t1","content":"42","is_error":false}}`,
		`{"type":"final_result"}`,
		`{"type":"complete"}`,
	}
	for _, f := range frames {
		d.HandleFrame([]byte(f))
	}

	if d.Dropped() != 0 || tr.Dropped() != 0 {
		t.Errorf("dropped: dispatcher=%d transcript=%d, want 0/0", d.Dropped(), tr.Dropped())
	}
	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}

	reply := tr.Messages()[1]
	if reply.Role != chat.RoleAssistant {
		t.Errorf("reply role = %s, want %s", reply.Role, chat.RoleAssistant)
	}
	if reply.Content != "Hi there" {
		t.Errorf("reply content = %q, want %q", reply.Content, "Hi there")
	}
	if reply.IsStreaming {
		t.Error("reply still streaming after final_result")
	}
	if len(reply.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(reply.ToolCalls))
	}
	tc := reply.ToolCalls[0]
	if tc.Name != "lookup" || tc.Status != chat.ToolStatusCompleted || tc.Result != "42" {
		t.Errorf("tool call = %+v", tc)
	}
	if tr.Processing() {
		t.Error("Processing() = true after complete")
	}
	if updates == 0 {
		t.Error("OnUpdate never fired")
	}
}

// An error frame landing after the exchange already finalized has no target;
// it must not add anything to the settled transcript.
func TestErrorFrameAfterFinalizeIsNoOp(t *testing.T) {
	tr := chat.NewTranscript()
	d := chat.NewDispatcher(tr)

	tr.AppendUser("Hello")
	d.HandleFrame([]byte(`{"type":"model_request_start"}`))
	d.HandleFrame([]byte(`{"type":"text_delta","data":{"content":"Hi"}}`))
	d.HandleFrame([]byte(`{"type":"final_result"}`))

	before := tr.Messages()
	d.HandleFrame([]byte(`{"type":"error","data":{"error":"boom"}}`))

	if !reflect.DeepEqual(before, tr.Messages()) {
		t.Errorf("late error frame changed the transcript: %d -> %d messages", len(before), tr.Len())
	}
	if tr.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", tr.Dropped())
	}
}

// Frames from a conversation the user already left fall through as no-ops.
func TestDispatcherStaleStreamAfterSwitch(t *testing.T) {
	tr := chat.NewTranscript()
	d := chat.NewDispatcher(tr)
	c := chat.NewController(tr)

	tr.AppendUser("question in A")
	d.HandleFrame([]byte(`{"type":"model_request_start"}`))
	d.HandleFrame([]byte(`{"type":"text_delta","data":{"content":"partial"}}`))

	// Switch to B while A is still streaming.
	token := c.Select("conv-b")
	c.Resolve(token, []chat.Message{{ID: "b1", Role: chat.RoleUser, Content: "b"}})

	before := tr.Len()
	d.HandleFrame([]byte(`{"type":"text_delta","data":{"content":" more"}}`))
	d.HandleFrame([]byte(`{"type":"tool_result","data":{"tool_call_id":"t1","content":"x"}}`))

	if tr.Len() != before {
		t.Errorf("stale frames changed transcript length: %d -> %d", before, tr.Len())
	}
	if tr.Messages()[0].Content != "b" {
		t.Errorf("conversation B content = %q", tr.Messages()[0].Content)
	}
	if tr.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", tr.Dropped())
	}
}
