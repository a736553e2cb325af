package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrNoDefaultProvider = errors.New("no default provider configured")
	ErrEmptyResponse     = errors.New("empty response")
)

// Provider is a text completion backend.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate performs a single completion request
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request represents a completion request. System is sent through the
// backend's dedicated system channel where one exists.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Prompt builds a single-turn request.
func Prompt(system, user string) *Request {
	return &Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
	}
}

// Message represents a chat message
type Message struct {
	Role    Role
	Content string
}

// Role represents the role of a message sender
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Response represents a completion
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Usage tracks token usage
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Registry holds the configured providers and the preferred one.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	preferred string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces a provider
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// SetDefault selects the preferred provider. "auto" defers to whatever is
// registered.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "auto" {
		if _, ok := r.providers[name]; !ok {
			return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
		}
	}
	r.preferred = name
	return nil
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Default returns the preferred provider, or the first registered one by
// name when no preference is set or it is "auto".
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[r.preferred]; ok {
		return p, nil
	}
	names := r.sortedNames()
	if len(names) == 0 {
		return nil, ErrNoDefaultProvider
	}
	return r.providers[names[0]], nil
}

// List returns registered provider names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate sends req to the default provider.
func (r *Registry) Generate(ctx context.Context, req *Request) (*Response, error) {
	p, err := r.Default()
	if err != nil {
		return nil, err
	}
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	if resp.Content == "" {
		return nil, fmt.Errorf("%s: %w", p.Name(), ErrEmptyResponse)
	}
	return resp, nil
}

func systemPrompt(req *Request) string {
	if req.System != "" {
		return req.System
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			return m.Content
		}
	}
	return ""
}

func conversation(req *Request) []Message {
	out := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}
