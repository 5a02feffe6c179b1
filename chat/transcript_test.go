package chat_test

import (
	"reflect"
	"testing"

	"dashtui/chat"
)

func TestAppendUserOptimistic(t *testing.T) {
	tr := chat.NewTranscript()

	msg := tr.AppendUser("Hello")

	if msg.ID == "" {
		t.Error("AppendUser() did not assign an id")
	}
	if msg.Role != chat.RoleUser {
		t.Errorf("AppendUser() role = %s, want %s", msg.Role, chat.RoleUser)
	}
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}
	if !tr.Processing() {
		t.Error("Processing() = false after send, want true")
	}
}

func TestStreamingLifecycle(t *testing.T) {
	tr := chat.NewTranscript()
	tr.AppendUser("Hello")

	started := tr.StartAssistant()
	if !started.IsStreaming {
		t.Error("StartAssistant() message is not streaming")
	}
	if tr.CurrentMessageID() != started.ID {
		t.Errorf("CurrentMessageID() = %s, want %s", tr.CurrentMessageID(), started.ID)
	}

	// Content is append-only and strictly grows per delta.
	prevLen := 0
	for _, delta := range []string{"Hi", " there", "!"} {
		tr.AppendDelta(delta)
		got := tr.Messages()[1].Content
		if len(got) <= prevLen {
			t.Errorf("content length %d did not grow past %d", len(got), prevLen)
		}
		prevLen = len(got)
	}
	if got := tr.Messages()[1].Content; got != "Hi there!" {
		t.Errorf("content = %q, want %q", got, "Hi there!")
	}

	tr.Finalize()
	if tr.Messages()[1].IsStreaming {
		t.Error("message still streaming after Finalize()")
	}
	if tr.CurrentMessageID() != "" {
		t.Errorf("CurrentMessageID() = %s after Finalize(), want empty", tr.CurrentMessageID())
	}
	if tr.Processing() {
		t.Error("Processing() = true after Finalize(), want false")
	}

	// Deltas after finalize must not change the finalized message.
	before := tr.Messages()
	tr.AppendDelta("late")
	if !reflect.DeepEqual(before, tr.Messages()) {
		t.Error("delta after Finalize() changed the transcript")
	}
}

func TestStreamingFlagIsOneWay(t *testing.T) {
	tr := chat.NewTranscript()
	tr.StartAssistant()
	firstID := tr.CurrentMessageID()
	tr.Finalize()

	// A new request starts a new message; the old one stays finalized.
	tr.StartAssistant()
	tr.AppendDelta("second reply")
	tr.Finalize()

	for _, msg := range tr.Messages() {
		if msg.IsStreaming {
			t.Errorf("message %s is streaming after all streams finalized", msg.ID)
		}
	}
	if tr.Messages()[0].ID != firstID {
		t.Error("first message id changed across a second stream")
	}
}

func TestAtMostOneStreamingMessage(t *testing.T) {
	tr := chat.NewTranscript()
	tr.StartAssistant()
	tr.AppendDelta("first")
	tr.StartAssistant()

	streaming := 0
	for _, msg := range tr.Messages() {
		if msg.IsStreaming {
			streaming++
		}
	}
	if streaming != 1 {
		t.Errorf("streaming messages = %d, want 1", streaming)
	}
}

func TestNoOpEventsLeaveStateUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		apply func(tr *chat.Transcript)
	}{
		{"delta without current message", func(tr *chat.Transcript) { tr.AppendDelta("orphan") }},
		{"tool call without current message", func(tr *chat.Transcript) { tr.AddToolCall("t1", "lookup", nil) }},
		{"tool result without current message", func(tr *chat.Transcript) { tr.ResolveToolCall("t1", "42", false) }},
		{"error without current message", func(tr *chat.Transcript) { tr.FinalizeError("boom") }},
		{"finalize when idle", func(tr *chat.Transcript) { tr.Finalize() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := chat.NewTranscript()
			tr.AppendUser("Hello")
			tr.StartAssistant()
			tr.AppendDelta("done")
			tr.Finalize()

			before := tr.Messages()
			tt.apply(tr)
			if !reflect.DeepEqual(before, tr.Messages()) {
				t.Error("no-op event changed transcript state")
			}
		})
	}
}

func TestDroppedCounter(t *testing.T) {
	tr := chat.NewTranscript()
	tr.AppendDelta("orphan")
	tr.ResolveToolCall("missing", "x", false)

	if got := tr.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestFinalizeError(t *testing.T) {
	t.Run("with current message", func(t *testing.T) {
		tr := chat.NewTranscript()
		tr.AppendUser("Hello")
		tr.StartAssistant()
		tr.AppendDelta("partial")

		tr.FinalizeError("model overloaded")

		msg := tr.Messages()[1]
		if msg.IsStreaming {
			t.Error("message still streaming after FinalizeError()")
		}
		if want := "partial\n\n[error: model overloaded]"; msg.Content != want {
			t.Errorf("content = %q, want %q", msg.Content, want)
		}
		if tr.Processing() {
			t.Error("Processing() = true after FinalizeError(), want false")
		}
	})

	t.Run("without current message", func(t *testing.T) {
		tr := chat.NewTranscript()
		tr.AppendUser("Hello")

		tr.FinalizeError("boom")

		if tr.Processing() {
			t.Error("processing flag survived an error with no current message")
		}
		if tr.Len() != 1 {
			t.Errorf("Len() = %d, want 1 (orphan error must not invent a message)", tr.Len())
		}
		if tr.Dropped() != 1 {
			t.Errorf("Dropped() = %d, want 1", tr.Dropped())
		}
	})
}

func TestEndProcessingIdempotent(t *testing.T) {
	tr := chat.NewTranscript()
	tr.AppendUser("Hello")
	tr.StartAssistant()
	tr.Finalize()

	// complete after final_result is a no-op, not an error.
	tr.EndProcessing()
	tr.EndProcessing()
	if tr.Processing() {
		t.Error("Processing() = true after EndProcessing()")
	}

	// complete with no preceding final_result still ends the stream.
	tr2 := chat.NewTranscript()
	tr2.AppendUser("Hi")
	tr2.StartAssistant()
	tr2.AppendDelta("partial")
	tr2.EndProcessing()
	if tr2.Processing() {
		t.Error("bare complete left processing set")
	}
	if tr2.Messages()[1].IsStreaming {
		t.Error("bare complete left the message streaming")
	}
}

func TestReplaceDiscardsStreamingMessage(t *testing.T) {
	tr := chat.NewTranscript()
	tr.AppendUser("Hello")
	tr.StartAssistant()
	tr.AppendDelta("in progress")

	replacement := []chat.Message{
		{ID: "b1", Role: chat.RoleUser, Content: "other conversation"},
	}
	tr.Replace(replacement)

	if tr.Len() != 1 {
		t.Errorf("Len() = %d after Replace(), want 1", tr.Len())
	}
	if tr.Messages()[0].ID != "b1" {
		t.Error("Replace() did not install the new messages")
	}
	if tr.CurrentMessageID() != "" {
		t.Error("Replace() kept a current message pointer")
	}
	if tr.Processing() {
		t.Error("Replace() kept the processing flag")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	tr := chat.NewTranscript()
	tr.AppendUser("Hello")

	msgs := tr.Messages()
	msgs[0].Content = "mutated"

	if tr.Messages()[0].Content != "Hello" {
		t.Error("mutating the returned slice changed transcript state")
	}
}
