package document

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"
)

// Buffer is an in-memory Document. Subscribers are called synchronously
// from Apply after the text has been updated.
type Buffer struct {
	mu        sync.Mutex
	uri       string
	path      string
	language  string
	text      string
	version   int
	closed    bool
	listeners map[int]func(ChangeEvent)
	nextID    int

	// persist is called with the new text before listeners are notified.
	persist func(text string) error
}

// NewBuffer creates an in-memory document.
func NewBuffer(uri, languageID, text string) *Buffer {
	return &Buffer{
		uri:       uri,
		path:      uri,
		language:  languageID,
		text:      text,
		listeners: make(map[int]func(ChangeEvent)),
	}
}

func (b *Buffer) URI() string        { return b.uri }
func (b *Buffer) Path() string       { return b.path }
func (b *Buffer) LanguageID() string { return b.language }

// Text returns the current content.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Version increments once per applied mutation.
func (b *Buffer) Version() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Apply implements Document.
func (b *Buffer) Apply(ctx context.Context, edits ...Edit) error {
	return b.apply(ctx, -1, edits)
}

// Snapshot returns the content together with its version.
func (b *Buffer) Snapshot() (string, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text, b.version
}

// ApplyAt implements Versioned.
func (b *Buffer) ApplyAt(ctx context.Context, version int, edits ...Edit) error {
	return b.apply(ctx, version, edits)
}

// apply performs edits; a non-negative version must match the current one.
func (b *Buffer) apply(ctx context.Context, version int, edits []Edit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(edits) == 0 {
		return nil
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if version >= 0 && version != b.version {
		current := b.version
		b.mu.Unlock()
		return fmt.Errorf("%w: have %d, edits built against %d", ErrStale, current, version)
	}

	text := b.text
	changes := make([]Change, 0, len(edits))
	for _, e := range edits {
		if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > len(text) {
			b.mu.Unlock()
			return fmt.Errorf("%w: offset %d length %d (size %d)", ErrInvalidEdit, e.Offset, e.Length, len(text))
		}
		text = text[:e.Offset] + e.Text + text[e.Offset+e.Length:]
		changes = append(changes, Change{RangeOffset: e.Offset, RangeLength: e.Length, Text: e.Text})
	}

	if b.persist != nil {
		if err := b.persist(text); err != nil {
			b.mu.Unlock()
			return fmt.Errorf("persist document: %w", err)
		}
	}

	b.text = text
	b.version++
	listeners := b.snapshotListeners()
	b.mu.Unlock()

	b.notify(listeners, ChangeEvent{URI: b.uri, Changes: changes})
	return nil
}

// Insert is a convenience for a single insertion, the shape of a keystroke.
func (b *Buffer) Insert(ctx context.Context, offset int, text string) error {
	return b.Apply(ctx, Edit{Offset: offset, Text: text})
}

// Subscribe implements Document.
func (b *Buffer) Subscribe(fn func(ChangeEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Close drops all subscribers and rejects further edits.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = make(map[int]func(ChangeEvent))
	return nil
}

// reload replaces the content with what read returns and emits the
// minimal change, if any. read runs under the buffer lock, so it never
// observes a persisted Apply whose text is not yet in memory.
func (b *Buffer) reload(read func() (string, error)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	text, err := read()
	if err != nil || text == b.text {
		b.mu.Unlock()
		return err
	}
	change := Diff(b.text, text)
	b.text = text
	b.version++
	listeners := b.snapshotListeners()
	b.mu.Unlock()

	b.notify(listeners, ChangeEvent{URI: b.uri, Changes: []Change{change}})
	return nil
}

func (b *Buffer) snapshotListeners() []func(ChangeEvent) {
	out := make([]func(ChangeEvent), 0, len(b.listeners))
	for i := 0; i < b.nextID; i++ {
		if fn, ok := b.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (b *Buffer) notify(listeners []func(ChangeEvent), ev ChangeEvent) {
	for _, fn := range listeners {
		fn(ev)
	}
}

// Diff returns the single change turning before into after, found by trimming
// the common prefix and suffix on rune boundaries.
func Diff(before, after string) Change {
	prefix := 0
	for prefix < len(before) && prefix < len(after) && before[prefix] == after[prefix] {
		prefix++
	}
	for prefix > 0 && prefix < len(before) && !utf8.RuneStart(before[prefix]) {
		prefix--
	}

	suffix := 0
	for suffix < len(before)-prefix && suffix < len(after)-prefix &&
		before[len(before)-1-suffix] == after[len(after)-1-suffix] {
		suffix++
	}
	for suffix > 0 && !utf8.RuneStart(before[len(before)-suffix]) {
		suffix--
	}

	return Change{
		RangeOffset: prefix,
		RangeLength: len(before) - prefix - suffix,
		Text:        after[prefix : len(after)-suffix],
	}
}
