package chat

// Sender is the outbound half of the transport, as seen by the controller.
type Sender interface {
	Send(v any) error
	Connected() bool
}

// Controller owns the "selected conversation" pointer and is the only
// component that replaces the transcript wholesale. Selecting a conversation
// replaces, never appends: the transcript after a switch holds exactly the
// fetched messages of the last selection.
//
// Every selection issues a monotonically increasing fetch token. A fetch
// result is applied only when its token is still the latest issued, so
// fetches that resolve out of order during rapid switching (A -> B -> C -> A)
// can never install an intermediate conversation's messages.
type Controller struct {
	transcript *Transcript
	selectedID string
	seq        uint64
}

// NewController returns a controller bound to one transcript.
func NewController(t *Transcript) *Controller {
	return &Controller{transcript: t}
}

// SelectedID returns the active conversation id, or "" for a new chat.
func (c *Controller) SelectedID() string {
	return c.selectedID
}

// Select makes id the active conversation and returns the token the caller
// must present with the fetched messages. The transcript is untouched until
// Resolve; the fetch itself happens at the caller's I/O boundary.
func (c *Controller) Select(id string) uint64 {
	c.selectedID = id
	c.seq++
	return c.seq
}

// Resolve installs fetched messages if token is still the latest issued.
// Stale tokens are discarded and the transcript is untouched. A replace
// while a message is streaming simply discards the in-progress message.
func (c *Controller) Resolve(token uint64, messages []Message) bool {
	if token != c.seq {
		return false
	}
	c.transcript.Replace(messages)
	return true
}

// NewChat clears the selection and empties the transcript unconditionally.
// Outstanding fetches are invalidated so a late resolve cannot repopulate
// the fresh chat.
func (c *Controller) NewChat() {
	c.selectedID = ""
	c.seq++
	c.transcript.Clear()
}

// AdoptCreated records the server-assigned id pushed after the first send of
// a brand-new chat. Ignored when a conversation is already selected: the
// user has moved on and the id belongs to an abandoned exchange.
func (c *Controller) AdoptCreated(id string) bool {
	if c.selectedID != "" || id == "" {
		return false
	}
	c.selectedID = id
	return true
}

// Send runs the send pipeline: append the user message optimistically (never
// rolled back), mark processing, and transmit the payload. The returned bool
// reports whether the transport was connected; the local append happens
// either way.
func (c *Controller) Send(text string, s Sender) (Message, bool) {
	msg := c.transcript.AppendUser(text)

	out := Outbound{Message: text}
	if c.selectedID != "" {
		id := c.selectedID
		out.ConversationID = &id
	}
	if s == nil || !s.Connected() {
		return msg, false
	}
	_ = s.Send(out)
	return msg, true
}
