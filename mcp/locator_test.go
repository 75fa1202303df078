package mcp

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpclient/chatmodel"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tcases := []struct {
		name string
		raw  string
		opts []Option
		exp  *Locator
	}{
		{
			name: "python",
			raw:  "weather/server.py",
			exp:  &Locator{Kind: TransportStdio, Command: "python", Args: []string{"weather/server.py"}},
		},
		{
			name: "python3",
			raw:  "server.py",
			opts: []Option{WithPythonCommand("python3")},
			exp:  &Locator{Kind: TransportStdio, Command: "python3", Args: []string{"server.py"}},
		},
		{
			name: "node",
			raw:  " build/index.js ",
			exp:  &Locator{Kind: TransportStdio, Command: "node", Args: []string{"build/index.js"}},
		},
		{
			name: "stdio",
			raw:  "stdio://uvx mcp-server-time --local-timezone UTC",
			exp:  &Locator{Kind: TransportStdio, Command: "uvx", Args: []string{"mcp-server-time", "--local-timezone", "UTC"}},
		},
		{
			name: "streamable",
			raw:  "http://localhost:8080/mcp",
			exp:  &Locator{Kind: TransportStreamable, Endpoint: "http://localhost:8080/mcp"},
		},
		{
			name: "streamable_hint",
			raw:  "HTTPS+stream://example.com/mcp",
			exp:  &Locator{Kind: TransportStreamable, Endpoint: "https://example.com/mcp"},
		},
		{
			name: "sse",
			raw:  "sse://example.com/sse",
			exp:  &Locator{Kind: TransportSSE, Endpoint: "https://example.com/sse"},
		},
		{
			name: "sse_hint",
			raw:  "http+sse://localhost:3000/sse",
			exp:  &Locator{Kind: TransportSSE, Endpoint: "http://localhost:3000/sse"},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			loc, err := ParseLocator(tc.raw, tc.opts...)
			require.NoError(t, err)
			assert.Equal(t, tc.exp, loc)
		})
	}
}

func TestParseLocator_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"server.txt",
		"server",
		"stdio://",
		"sse://",
		"ftp://example.com/mcp",
		"http+ws://localhost/mcp",
		"http://",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseLocator(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, chatmodel.ErrInputValidation), "unexpected error: %v", err)
			assert.Equal(t, chatmodel.KindInputValidation, chatmodel.Kind(err))
		})
	}
}

func TestLocatorString(t *testing.T) {
	loc := &Locator{Kind: TransportStdio, Command: "node", Args: []string{"index.js", "--debug"}}
	assert.Equal(t, "node index.js --debug", loc.String())

	loc = &Locator{Kind: TransportSSE, Endpoint: "https://example.com/sse"}
	assert.Equal(t, "https://example.com/sse", loc.String())
}

func TestBuildTransport(t *testing.T) {
	ctx := context.Background()
	o := newOptions(WithEnv("FOO=bar"))

	tr, err := buildTransport(ctx, &Locator{Kind: TransportStdio, Command: "python", Args: []string{"server.py"}}, o)
	require.NoError(t, err)
	cmdTr, ok := tr.(*mcpsdk.CommandTransport)
	require.True(t, ok, "unexpected transport %T", tr)
	assert.Equal(t, []string{"python", "server.py"}, cmdTr.Command.Args)
	assert.Contains(t, cmdTr.Command.Env, "FOO=bar")

	tr, err = buildTransport(ctx, &Locator{Kind: TransportSSE, Endpoint: "https://example.com/sse"}, o)
	require.NoError(t, err)
	sseTr, ok := tr.(*mcpsdk.SSEClientTransport)
	require.True(t, ok, "unexpected transport %T", tr)
	assert.Equal(t, "https://example.com/sse", sseTr.Endpoint)

	tr, err = buildTransport(ctx, &Locator{Kind: TransportStreamable, Endpoint: "http://localhost/mcp"}, o)
	require.NoError(t, err)
	httpTr, ok := tr.(*mcpsdk.StreamableClientTransport)
	require.True(t, ok, "unexpected transport %T", tr)
	assert.Equal(t, "http://localhost/mcp", httpTr.Endpoint)

	_, err = buildTransport(ctx, &Locator{Kind: "websocket"}, o)
	assert.True(t, errors.Is(err, chatmodel.ErrInputValidation))
}

func TestOptions(t *testing.T) {
	o := newOptions()
	assert.Equal(t, DefaultClientName, o.Name)
	assert.Equal(t, DefaultClientVersion, o.Version)
	assert.Equal(t, DefaultPythonCommand, o.PythonCommand)
	assert.Equal(t, DefaultNodeCommand, o.NodeCommand)

	o = newOptions(WithName("test", "v1"), WithNodeCommand("bun"), WithEnv("A=1"), WithEnv("B=2"))
	assert.Equal(t, "test", o.Name)
	assert.Equal(t, "v1", o.Version)
	assert.Equal(t, "bun", o.NodeCommand)
	assert.Equal(t, []string{"A=1", "B=2"}, o.Env)
}
