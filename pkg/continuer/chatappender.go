package continuer

import "github.com/theredstring/redstring-sub011/pkg/events"

// ChatAppender adapts *events.Chat to committer.ChatAppender, fixing the
// role to "assistant" since every Committer-originated line is system
// narration, never a user message.
type ChatAppender struct {
	chat *events.Chat
}

// NewChatAppender wraps chat as a committer.ChatAppender.
func NewChatAppender(chat *events.Chat) ChatAppender {
	return ChatAppender{chat: chat}
}

// AppendChat implements committer.ChatAppender.
func (a ChatAppender) AppendChat(threadID, cid, text string) {
	a.chat.Append(threadID, cid, "assistant", text)
}
