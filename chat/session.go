// Package chat provides the interactive session: it reads the queries,
// and prints the answers until the quit command or the interrupt.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/mcpclient/assistants"
	"github.com/effective-security/mcpclient/callbacks"
	"github.com/effective-security/mcpclient/chatmodel"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpclient", "chat")

const (
	// QuitCommand ends the session, it is matched case-insensitive
	QuitCommand = "quit"

	msgStarted      = "\nMCP client started!\nEnter your query or type 'quit' to exit.\n"
	msgPrompt       = "\nQuery: "
	msgExiting      = "Exiting...\n"
	msgInvalidQuery = "\nPlease enter a valid query.\n"
)

// Session is the read-query/print-answer loop
type Session struct {
	assistant assistants.IAssistant
	in        io.Reader
	out       io.Writer
	chatCtx   chatmodel.ChatContext

	// scratchpad is set to print the stats after every query
	scratchpad *callbacks.Scratchpad
}

// Option configures the Session
type Option func(*Session)

// WithScratchpad prints the query log recorded by the scratchpad after every answer.
// The scratchpad must be registered as the assistant's callback.
func WithScratchpad(sp *callbacks.Scratchpad) Option {
	return func(s *Session) {
		s.scratchpad = sp
	}
}

// WithChatID sets the chat ID, by default a random one is generated
func WithChatID(chatID string) Option {
	return func(s *Session) {
		s.chatCtx = chatmodel.NewChatContext(chatID)
	}
}

// NewSession returns a session that reads queries from in,
// and writes the answers to out.
func NewSession(assistant assistants.IAssistant, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		assistant: assistant,
		in:        in,
		out:       out,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chatCtx == nil {
		s.chatCtx = chatmodel.NewChatContext("")
	}
	return s
}

// ChatID returns the ID of the chat
func (s *Session) ChatID() string {
	return s.chatCtx.GetChatID()
}

// Run runs the loop until the quit command, the end of the input,
// or the cancellation of the context.
//
// The cancellation is observed while waiting for the input only,
// the query in flight runs to completion on a context detached from ctx.
// Run returns ctx.Err() when the loop was interrupted, nil otherwise.
func (s *Session) Run(ctx context.Context) error {
	ctx = chatmodel.WithChatContext(ctx, s.chatCtx)

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)

	go s.readLines(lines, done)

	fmt.Fprint(s.out, msgStarted)
	for {
		if err := ctx.Err(); err != nil {
			logger.ContextKV(ctx, xlog.DEBUG, "status", "interrupted")
			return err
		}
		fmt.Fprint(s.out, msgPrompt)

		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				logger.ContextKV(ctx, xlog.DEBUG, "status", "end_of_input")
				fmt.Fprint(s.out, "\n"+msgExiting)
				return nil
			}
			line = l
		case <-ctx.Done():
			logger.ContextKV(ctx, xlog.DEBUG, "status", "interrupted")
			return ctx.Err()
		}

		query := strings.TrimSpace(line)
		if strings.EqualFold(query, QuitCommand) {
			fmt.Fprint(s.out, msgExiting)
			return nil
		}
		if query == "" {
			fmt.Fprint(s.out, msgInvalidQuery)
			continue
		}

		answer := s.process(context.WithoutCancel(ctx), query)
		fmt.Fprintf(s.out, "\n%s\n", answer)
	}
}

func (s *Session) process(ctx context.Context, query string) string {
	if s.scratchpad == nil {
		return s.assistant.ProcessQuery(ctx, query)
	}

	s.scratchpad.StartQuery(ctx)
	answer := s.assistant.ProcessQuery(ctx, query)
	stats, log := s.scratchpad.EndQuery(ctx)
	if stats != nil {
		fmt.Fprint(s.out, "\n"+string(log))
		logger.ContextKV(ctx, xlog.DEBUG,
			"query_id", stats.QueryID,
			"duration", stats.Duration.String(),
			"llm_calls", stats.LLMCalls,
			"tool_calls", stats.ToolCalls,
			"tokens", stats.LLMTotalTokens,
		)
	}
	return answer
}

// readLines sends the input lines to the channel until the end of the input,
// or until done is closed.
func (s *Session) readLines(lines chan<- string, done <-chan struct{}) {
	defer close(lines)

	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.KV(xlog.ERROR, "reason", "read_input", "err", err.Error())
	}
}
