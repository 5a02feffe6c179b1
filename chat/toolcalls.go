package chat

// Tool call ledger for the current message. Lookup-and-patch keyed by
// tool-call id; an update touches exactly one tool call and no other field
// of the owning message. Missing targets are counted no-ops, same tolerance
// as the rest of the event path.

// AddToolCall records a tool invocation on the current message. The server
// announces calls already running, so the entry starts in running state.
// With no current message the call is dropped.
func (t *Transcript) AddToolCall(id, name string, args map[string]any) {
	i := t.currentIndex()
	if i < 0 {
		t.dropped++
		return
	}
	t.messages[i].ToolCalls = append(t.messages[i].ToolCalls, ToolCall{
		ID:     id,
		Name:   name,
		Args:   args,
		Status: ToolStatusRunning,
	})
}

// ResolveToolCall sets the result on the identified tool call and moves it
// to completed, or failed when isError is set. Unknown id: no-op.
func (t *Transcript) ResolveToolCall(id, result string, isError bool) {
	i := t.currentIndex()
	if i < 0 {
		t.dropped++
		return
	}
	calls := t.messages[i].ToolCalls
	for j := range calls {
		if calls[j].ID != id {
			continue
		}
		calls[j].Result = result
		if isError {
			calls[j].Status = ToolStatusFailed
		} else {
			calls[j].Status = ToolStatusCompleted
		}
		return
	}
	t.dropped++
}

// ToolCallByID looks up a tool call on the current message. The bool is
// false when there is no current message or no such id.
func (t *Transcript) ToolCallByID(id string) (ToolCall, bool) {
	i := t.currentIndex()
	if i < 0 {
		return ToolCall{}, false
	}
	for _, tc := range t.messages[i].ToolCalls {
		if tc.ID == id {
			return tc, true
		}
	}
	return ToolCall{}, false
}
