package llm

// Conversation helpers. The service holds a conversation only for the
// duration of one request; persistence across turns is the caller's
// responsibility. Neither function mutates its input slice.

// BuildTurn returns the exact message sequence sent upstream for one
// round-trip: the caller-supplied history, unmodified, followed by the new
// user turn. No deduplication and no truncation is applied.
func BuildTurn(history []Message, userText string) []Message {
	turn := make([]Message, 0, len(history)+1)
	turn = append(turn, history...)
	turn = append(turn, Message{Role: RoleUser, Content: userText})
	return turn
}

// AppendAssistantReply returns the turn plus the assistant's reply, for the
// caller to retain as history for the next round-trip. It must only be
// called with a completed reply; a partial reply from a failed stream would
// corrupt future context.
func AppendAssistantReply(turn []Message, reply string) []Message {
	out := make([]Message, 0, len(turn)+1)
	out = append(out, turn...)
	out = append(out, Message{Role: RoleAssistant, Content: reply})
	return out
}

// WithSystem prepends a system message to the sequence.
func WithSystem(system string, messages []Message) []Message {
	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: system})
	out = append(out, messages...)
	return out
}
