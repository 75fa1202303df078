package chatmodel

import (
	"context"
	"sync"

	"github.com/effective-security/x/values"
	"github.com/google/uuid"
)

// ChatContext identifies the interactive session and its current query,
// it is attached to the context of every query.
type ChatContext interface {
	GetChatID() string
	// GetQueryID returns ID of the last started query, empty before the first one
	GetQueryID() string
	// NextQuery starts a new query and returns its ID
	NextQuery() string
	// QueryCount returns number of queries started in this chat
	QueryCount() int
}

type chatContext struct {
	chatID string

	lock    sync.RWMutex
	queryID string
	queries int
}

func (c *chatContext) GetChatID() string {
	return c.chatID
}

func (c *chatContext) GetQueryID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.queryID
}

func (c *chatContext) NextQuery() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.queries++
	c.queryID = NewQueryID()
	return c.queryID
}

func (c *chatContext) QueryCount() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.queries
}

// NewChatContext returns ChatContext with the chat ID,
// a random ID is generated when chatID is empty.
func NewChatContext(chatID string) ChatContext {
	return &chatContext{
		chatID: values.StringsCoalesce(chatID, NewChatID()),
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext retrieves the ChatContext from the context
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// GetChatID returns the chat ID, or empty string outside of a chat
func GetChatID(ctx context.Context) string {
	if v := GetChatContext(ctx); v != nil {
		return v.GetChatID()
	}
	return ""
}

// GetQueryID returns the current query ID, or empty string outside of a chat
func GetQueryID(ctx context.Context) string {
	if v := GetChatContext(ctx); v != nil {
		return v.GetQueryID()
	}
	return ""
}

// NewChatID returns a random chat ID
func NewChatID() string {
	return uuid.NewString()
}

// NewQueryID returns a random query ID
func NewQueryID() string {
	return uuid.NewString()
}
