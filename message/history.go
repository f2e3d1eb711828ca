package message

// History is a bounded, ordered message log. When the limit is exceeded the
// oldest entries are dropped.
type History struct {
	limit    int
	messages []*Message
}

// NewHistory creates a history holding at most limit messages. A non-positive
// limit disables the bound.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Add appends a message and trims the oldest entries past the limit.
func (h *History) Add(msg *Message) {
	if msg == nil {
		return
	}
	h.messages = append(h.messages, msg)
	if h.limit > 0 && len(h.messages) > h.limit {
		drop := len(h.messages) - h.limit
		trimmed := make([]*Message, h.limit)
		copy(trimmed, h.messages[drop:])
		h.messages = trimmed
	}
}

// Append is shorthand for Add(NewMessage(role, content)).
func (h *History) Append(role Role, content string) {
	h.Add(NewMessage(role, content))
}

// Messages returns the retained messages, oldest first.
func (h *History) Messages() []*Message {
	return h.messages
}

// Recent returns up to n of the newest messages.
func (h *History) Recent(n int) []*Message {
	return Last(h.messages, n)
}

// Len returns the number of retained messages.
func (h *History) Len() int {
	return len(h.messages)
}

// Limit returns the configured bound.
func (h *History) Limit() int {
	return h.limit
}

// Restore replaces the contents, applying the bound.
func (h *History) Restore(msgs []*Message) {
	h.messages = nil
	for _, msg := range msgs {
		h.Add(msg)
	}
}
