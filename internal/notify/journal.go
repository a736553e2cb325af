// Package notify collects user-visible session messages and context flags
// for surfaces that cannot show them directly, such as the HTTP daemon and
// the MCP server.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level of a message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Message is one notification.
type Message struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Journal is a bounded, in-order log of messages. It implements
// session.Notifier.
type Journal struct {
	mu     sync.Mutex
	limit  int
	offset int // sequence number of msgs[0]
	msgs   []Message
}

// NewJournal keeps at most limit messages; limit <= 0 means 100.
func NewJournal(limit int) *Journal {
	if limit <= 0 {
		limit = 100
	}
	return &Journal{limit: limit}
}

func (j *Journal) Info(msg string)  { j.add(LevelInfo, msg) }
func (j *Journal) Warn(msg string)  { j.add(LevelWarn, msg) }
func (j *Journal) Error(msg string) { j.add(LevelError, msg) }

func (j *Journal) add(level Level, text string) {
	switch level {
	case LevelError:
		slog.Error("notify", "message", text)
	case LevelWarn:
		slog.Warn("notify", "message", text)
	default:
		slog.Info("notify", "message", text)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.msgs = append(j.msgs, Message{Level: level, Text: text, At: time.Now()})
	if over := len(j.msgs) - j.limit; over > 0 {
		j.msgs = append([]Message(nil), j.msgs[over:]...)
		j.offset += over
	}
}

// Mark returns a sequence number to pass to Since.
func (j *Journal) Mark() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.offset + len(j.msgs)
}

// Since returns the messages added after mark that are still retained.
func (j *Journal) Since(mark int) []Message {
	j.mu.Lock()
	defer j.mu.Unlock()
	i := mark - j.offset
	if i < 0 {
		i = 0
	}
	if i >= len(j.msgs) {
		return []Message{}
	}
	return append([]Message(nil), j.msgs[i:]...)
}

// Recent returns up to n of the latest messages.
func (j *Journal) Recent(n int) []Message {
	j.mu.Lock()
	defer j.mu.Unlock()
	if n <= 0 || n > len(j.msgs) {
		n = len(j.msgs)
	}
	return append([]Message(nil), j.msgs[len(j.msgs)-n:]...)
}
