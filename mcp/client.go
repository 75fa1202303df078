package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpclient/chatmodel"
	"github.com/effective-security/mcpclient/pkg/metricskey"
	"github.com/effective-security/mcpclient/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpclient", "mcp")

// Client is the tool registry over an MCP client session
type Client struct {
	locator *Locator

	lock    sync.RWMutex
	session *mcpsdk.ClientSession
}

var _ tools.Registry = (*Client)(nil)

// Connect starts or dials the server described by the locator,
// and performs the initialize handshake.
//
// An unsupported locator is returned as ErrInputValidation,
// any failure to establish the session is marked as ErrProviderUnavailable.
func Connect(ctx context.Context, locator string, opts ...Option) (*Client, error) {
	o := newOptions(opts...)
	loc, err := parseLocator(locator, o)
	if err != nil {
		return nil, err
	}

	transport, err := transportBuilder(ctx, loc, o)
	if err != nil {
		return nil, err
	}
	return connect(ctx, loc, transport, o)
}

// ConnectTransport performs the initialize handshake over the given transport,
// for servers running in the same process.
func ConnectTransport(ctx context.Context, transport mcpsdk.Transport, opts ...Option) (*Client, error) {
	loc := &Locator{Kind: TransportInMemory, Endpoint: fmt.Sprintf("%T", transport)}
	return connect(ctx, loc, transport, newOptions(opts...))
}

func connect(ctx context.Context, loc *Locator, transport mcpsdk.Transport, o *Options) (*Client, error) {
	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: o.Name, Version: o.Version}, nil)
	session, err := impl.Connect(ctx, transport, nil)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "connect",
			"server", loc.String(),
			"err", err.Error(),
		)
		return nil, errors.Mark(errors.Wrapf(err, "mcp: failed to connect to %s", loc.String()), chatmodel.ErrProviderUnavailable)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "connected",
		"server", loc.String(),
		"transport", loc.Kind,
	)

	return &Client{
		locator: loc,
		session: session,
	}, nil
}

// Locator returns the server locator
func (c *Client) Locator() *Locator {
	return c.locator
}

func (c *Client) getSession() (*mcpsdk.ClientSession, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.session == nil {
		return nil, errors.WithStack(chatmodel.ErrProviderUnavailable)
	}
	return c.session, nil
}

// ListTools returns the tools advertised by the server, in the order returned.
func (c *Client) ListTools(ctx context.Context) ([]tools.Descriptor, error) {
	session, err := c.getSession()
	if err != nil {
		return nil, err
	}

	var list []tools.Descriptor
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "mcp: list tools")
			}
			return nil, errors.Mark(errors.Wrap(err, "mcp: failed to list tools"), chatmodel.ErrProviderUnavailable)
		}
		d, err := toDescriptor(tool)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}

	logger.ContextKV(ctx, xlog.DEBUG, "tools", len(list))
	return list, nil
}

// Invoke calls the tool with the arguments as given, without validation.
func (c *Client) Invoke(ctx context.Context, name string, args json.RawMessage) (*tools.Result, error) {
	started := time.Now()
	defer metricskey.PerfToolCall.MeasureSince(started, name)

	session, err := c.getSession()
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		return nil, err
	}

	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "call_tool",
			"tool", name,
			"err", err.Error(),
		)
		return nil, chatmodel.NewToolExecutionError(name, errors.WithStack(err))
	}

	result := toResult(name, res)
	if res.IsError {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		msg := values.StringsCoalesce(result.Text(), "tool reported an error")
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_error",
			"tool", name,
			"message", msg,
		)
		return nil, chatmodel.NewToolExecutionError(name, errors.New(msg))
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", name,
		"content", len(result.Content),
		"elapsed", time.Since(started).String(),
	)
	return result, nil
}

// Close closes the session, it is safe to call more than once.
func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	if err != nil {
		return errors.Wrap(err, "mcp: failed to close session")
	}
	logger.KV(xlog.DEBUG, "status", "closed", "server", c.locator.String())
	return nil
}

func toDescriptor(tool *mcpsdk.Tool) (tools.Descriptor, error) {
	if tool == nil {
		return tools.Descriptor{}, errors.New("mcp: nil tool in the list")
	}
	d := tools.Descriptor{
		Name:        tool.Name,
		Description: tool.Description,
	}
	if tool.InputSchema == nil {
		return d, nil
	}

	js, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return tools.Descriptor{}, errors.Wrapf(err, "mcp: invalid input schema of %s", tool.Name)
	}
	d.Schema = js

	// the typed view is optional, the schema is sent to the model as advertised
	schema := new(jsonschema.Schema)
	if err = json.Unmarshal(js, schema); err != nil {
		logger.KV(xlog.DEBUG,
			"status", "untyped_schema",
			"tool", tool.Name,
			"reason", err.Error(),
		)
	} else {
		d.InputSchema = schema
	}
	return d, nil
}

func toResult(name string, res *mcpsdk.CallToolResult) *tools.Result {
	result := &tools.Result{ToolName: name}
	if res == nil {
		return result
	}
	for _, c := range res.Content {
		if item, ok := toContent(c); ok {
			result.Content = append(result.Content, item)
		}
	}
	if len(result.Content) == 0 && res.StructuredContent != nil {
		if js, err := json.Marshal(res.StructuredContent); err == nil {
			result.Content = append(result.Content, tools.TextContent(string(js)))
		}
	}
	return result
}

func toContent(c mcpsdk.Content) (tools.Content, bool) {
	switch v := c.(type) {
	case *mcpsdk.TextContent:
		return tools.TextContent(v.Text), true
	case *mcpsdk.ImageContent:
		return tools.Content{Type: tools.ContentImage, MIMEType: v.MIMEType, Data: v.Data}, true
	case *mcpsdk.AudioContent:
		return tools.Content{Type: tools.ContentAudio, MIMEType: v.MIMEType, Data: v.Data}, true
	case *mcpsdk.ResourceLink:
		return tools.Content{Type: tools.ContentResourceLink, MIMEType: v.MIMEType, URI: v.URI}, true
	case *mcpsdk.EmbeddedResource:
		if v.Resource == nil {
			return tools.Content{}, false
		}
		return tools.Content{
			Type:     tools.ContentResource,
			MIMEType: v.Resource.MIMEType,
			URI:      v.Resource.URI,
			Text:     v.Resource.Text,
			Data:     v.Resource.Blob,
		}, true
	}
	logger.KV(xlog.DEBUG, "reason", "unsupported_content", "type", fmt.Sprintf("%T", c))
	return tools.Content{}, false
}
