package chat

import "github.com/ppiont/socratex/internal/llm"

// regenerateCut prepares a history for regenerating the assistant
// message at index. It truncates the list so it ends with the nearest
// user message preceding index, inclusive. The returned flag is false
// when index is out of range, the target is not an assistant message,
// or no user message precedes it; callers treat that as a no-op.
func regenerateCut(messages []Message, index int) ([]Message, bool) {
	if index < 0 || index >= len(messages) {
		return nil, false
	}
	if messages[index].Role != llm.RoleAssistant {
		return nil, false
	}
	for i := index - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return CloneMessageList(messages[:i+1]), true
		}
	}
	return nil, false
}

// editBranchCut prepares a history for editing the user message at
// index. It truncates strictly before that message; the edited text is
// then submitted as a fresh user turn. The returned flag is false when
// index is out of range or the target is not a user message.
func editBranchCut(messages []Message, index int) ([]Message, bool) {
	if index < 0 || index >= len(messages) {
		return nil, false
	}
	if messages[index].Role != llm.RoleUser {
		return nil, false
	}
	return CloneMessageList(messages[:index]), true
}
