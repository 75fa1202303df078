package chatmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatContext_Basics(t *testing.T) {
	t.Parallel()
	c := NewChatContext("cid")
	require.NotNil(t, c)
	assert.Equal(t, "cid", c.GetChatID())
	assert.Empty(t, c.GetQueryID())
	assert.Equal(t, 0, c.QueryCount())

	q1 := c.NextQuery()
	assert.NotEmpty(t, q1)
	assert.Equal(t, q1, c.GetQueryID())
	q2 := c.NextQuery()
	assert.NotEqual(t, q1, q2)
	assert.Equal(t, 2, c.QueryCount())

	// IDs are unique per chat
	other := NewChatContext("")
	assert.NotEqual(t, c.GetChatID(), other.GetChatID())
	assert.NotEqual(t, q2, other.NextQuery())
}

func TestNewChatContext_DefaultIDs(t *testing.T) {
	t.Parallel()
	c := NewChatContext("")
	require.NotNil(t, c)
	assert.NotEmpty(t, c.GetChatID())
	assert.Len(t, c.GetChatID(), 36)
}

func TestChatContext_FromContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Nil(t, GetChatContext(ctx))
	assert.Empty(t, GetChatID(ctx))
	assert.Empty(t, GetQueryID(ctx))

	c := NewChatContext("chat1")
	qid := c.NextQuery()
	ctx = WithChatContext(ctx, c)
	assert.Same(t, c, GetChatContext(ctx))
	assert.Equal(t, "chat1", GetChatID(ctx))
	assert.Equal(t, qid, GetQueryID(ctx))
}
