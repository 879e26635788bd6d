package events

import "time"

// ChatLine is one line appended to a thread's chat transcript, used for
// Committer completion summaries, read-result digests, and the QA replies
// the Router returns directly to callers (spec.md §4.4 steps 9/11, §6
// "GET /api/bridge/telemetry" returning {telemetry[], chat[]}).
type ChatLine struct {
	Seq      uint64    `json:"seq"`
	TS       time.Time `json:"ts"`
	ThreadID string    `json:"threadId"`
	Cid      string    `json:"cid,omitempty"`
	Role     string    `json:"role"` // "assistant" | "user" | "system"
	Text     string    `json:"text"`
}

// Chat is an append-only per-process chat transcript shared by every
// thread; callers filter by ThreadID. Built on the same bounded-ring idiom
// as Log/Telemetry, kept separate because its query shape (filter by
// thread, not cid/type) differs enough to not be worth forcing into Log.
type Chat struct {
	log *Log
}

// NewChat creates a chat transcript bounded to capacity lines.
func NewChat(capacity int) *Chat {
	return &Chat{log: NewLog(capacity)}
}

// Append records one chat line and returns it.
func (c *Chat) Append(threadID, cid, role, text string) ChatLine {
	e := c.log.Append(ChatEntryType, map[string]interface{}{
		"threadId": threadID,
		"cid":      cid,
		"role":     role,
		"text":     text,
	})
	return entryToChatLine(e)
}

// Since returns chat lines appended after sinceSeq, oldest first.
func (c *Chat) Since(sinceSeq uint64) []ChatLine {
	entries := c.log.ReplaySince(sinceSeq)
	out := make([]ChatLine, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryToChatLine(e))
	}
	return out
}

// Snapshot returns up to limit of the most recent chat lines.
func (c *Chat) Snapshot(limit int) []ChatLine {
	entries := c.log.Snapshot(limit)
	out := make([]ChatLine, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryToChatLine(e))
	}
	return out
}

func entryToChatLine(e Entry) ChatLine {
	line := ChatLine{Seq: e.Seq, TS: e.TS}
	if v, ok := e.Payload["threadId"].(string); ok {
		line.ThreadID = v
	}
	if v, ok := e.Payload["cid"].(string); ok {
		line.Cid = v
	}
	if v, ok := e.Payload["role"].(string); ok {
		line.Role = v
	}
	if v, ok := e.Payload["text"].(string); ok {
		line.Text = v
	}
	return line
}
