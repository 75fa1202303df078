package chatmodel

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		name string
		err  error
		kind ErrorKind
		exp  string
	}{
		{
			name: "nil",
			err:  nil,
			kind: KindNone,
			exp:  "",
		},
		{
			name: "input",
			err:  errors.WithMessage(ErrInputValidation, "query is empty"),
			kind: KindInputValidation,
			exp:  "Error: query is empty: invalid input",
		},
		{
			name: "provider",
			err:  errors.Wrap(ErrProviderUnavailable, "list tools"),
			kind: KindProviderUnavailable,
			exp:  "Error: list tools: tool provider unavailable",
		},
		{
			name: "tool",
			err:  errors.WithMessage(NewToolExecutionError("add", errors.New("boom")), "dispatch"),
			kind: KindToolExecution,
			exp:  `Error: tool "add" failed: boom`,
		},
		{
			name: "tool without cause",
			err:  NewToolExecutionError("add", nil),
			kind: KindToolExecution,
			exp:  `Error: tool "add" failed`,
		},
		{
			name: "completion",
			err:  NewCompletionError(errors.New("rate limited")),
			kind: KindCompletion,
			exp:  "Error: completion failed: rate limited",
		},
		{
			name: "canceled",
			err:  errors.WithStack(context.Canceled),
			kind: KindCanceled,
			exp:  "Error: query canceled",
		},
		{
			name: "unknown",
			err:  errors.New("something else"),
			kind: KindUnknown,
			exp:  "Error: something else",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, Kind(tc.err))
			assert.Equal(t, tc.exp, Describe(tc.err))
		})
	}
}

func TestToolExecutionError_Unwrap(t *testing.T) {
	t.Parallel()

	err := NewToolExecutionError("list_dir", ErrProviderUnavailable)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))

	var te *ToolExecutionError
	assert.True(t, errors.As(errors.Wrap(err, "wrapped"), &te))
	assert.Equal(t, "list_dir", te.Name)

	cerr := NewCompletionError(context.DeadlineExceeded)
	assert.True(t, errors.Is(cerr, context.DeadlineExceeded))
	assert.Equal(t, KindCompletion, Kind(cerr))
}
