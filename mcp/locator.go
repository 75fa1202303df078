package mcp

import (
	"context"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpclient/chatmodel"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// TransportKind is the kind of transport used to reach the server
type TransportKind string

const (
	TransportStdio      TransportKind = "stdio"
	TransportSSE        TransportKind = "sse"
	TransportStreamable TransportKind = "streamable"
	// TransportInMemory is used with ConnectTransport only,
	// it can not be expressed by a locator string
	TransportInMemory TransportKind = "in_memory"
)

const (
	stdioSchemePrefix = "stdio://"
	sseSchemePrefix   = "sse://"
)

// Locator describes how to reach the MCP server
type Locator struct {
	Kind TransportKind
	// Command and Args are set for TransportStdio
	Command string
	Args    []string
	// Endpoint is set for TransportSSE and TransportStreamable,
	// and describes the transport for TransportInMemory
	Endpoint string
}

func (l *Locator) String() string {
	if l.Kind == TransportStdio {
		return strings.TrimSpace(l.Command + " " + strings.Join(l.Args, " "))
	}
	return l.Endpoint
}

// ParseLocator parses the server locator.
// It returns ErrInputValidation for unsupported locators,
// no process is started and no connection is made.
func ParseLocator(raw string, opts ...Option) (*Locator, error) {
	return parseLocator(raw, newOptions(opts...))
}

func parseLocator(raw string, o *Options) (*Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.WithMessage(chatmodel.ErrInputValidation, "server locator is empty")
	}

	lowered := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lowered, stdioSchemePrefix):
		parts := strings.Fields(raw[len(stdioSchemePrefix):])
		if len(parts) == 0 {
			return nil, errors.WithMessage(chatmodel.ErrInputValidation, "stdio command is empty")
		}
		return &Locator{Kind: TransportStdio, Command: parts[0], Args: parts[1:]}, nil
	case strings.HasPrefix(lowered, sseSchemePrefix):
		endpoint, err := normalizeHTTPURL(raw[len(sseSchemePrefix):], true)
		if err != nil {
			return nil, errors.WithMessagef(chatmodel.ErrInputValidation, "invalid SSE endpoint: %s", err.Error())
		}
		return &Locator{Kind: TransportSSE, Endpoint: endpoint}, nil
	case strings.HasSuffix(lowered, ".py"):
		return &Locator{Kind: TransportStdio, Command: o.PythonCommand, Args: []string{raw}}, nil
	case strings.HasSuffix(lowered, ".js"):
		return &Locator{Kind: TransportStdio, Command: o.NodeCommand, Args: []string{raw}}, nil
	}

	if loc, matched, err := parseHTTPFamily(raw); matched {
		return loc, err
	}

	return nil, errors.WithMessagef(chatmodel.ErrInputValidation,
		"unsupported server %q: must be a .py or .js script, stdio:// command or http(s) endpoint", raw)
}

// parseHTTPFamily handles http(s):// endpoints, optionally with a transport hint
// in the scheme, like http+sse:// or https+stream://
func parseHTTPFamily(raw string) (*Locator, bool, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return nil, false, nil
	}

	base, hint, _ := strings.Cut(strings.ToLower(u.Scheme), "+")
	if base != "http" && base != "https" {
		return nil, false, nil
	}

	kind := TransportStreamable
	switch hint {
	case "", "stream", "streamable", "http":
	case "sse":
		kind = TransportSSE
	default:
		return nil, true, errors.WithMessagef(chatmodel.ErrInputValidation, "unsupported HTTP transport hint %q", hint)
	}

	normalized := *u
	normalized.Scheme = base
	endpoint, err := normalizeHTTPURL(normalized.String(), false)
	if err != nil {
		return nil, true, errors.WithMessagef(chatmodel.ErrInputValidation, "invalid %s endpoint: %s", kind, err.Error())
	}
	return &Locator{Kind: kind, Endpoint: endpoint}, true, nil
}

func normalizeHTTPURL(raw string, guessScheme bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("endpoint is empty")
	}
	if guessScheme && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", errors.WithStack(err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", errors.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", errors.New("missing host")
	}
	parsed.Scheme = scheme
	return parsed.String(), nil
}

// transportBuilder is replaced in tests
var transportBuilder = buildTransport

func buildTransport(_ context.Context, loc *Locator, o *Options) (mcpsdk.Transport, error) {
	switch loc.Kind {
	case TransportStdio:
		// the server process lives as long as the session, not the connect context
		// #nosec G204 -- the command is given by the operator on the command line
		cmd := exec.Command(loc.Command, loc.Args...)
		if len(o.Env) > 0 {
			cmd.Env = append(os.Environ(), o.Env...)
		}
		if o.Stderr != nil {
			cmd.Stderr = o.Stderr
		}
		return &mcpsdk.CommandTransport{Command: cmd}, nil
	case TransportSSE:
		return &mcpsdk.SSEClientTransport{Endpoint: loc.Endpoint}, nil
	case TransportStreamable:
		return &mcpsdk.StreamableClientTransport{Endpoint: loc.Endpoint}, nil
	}
	return nil, errors.WithMessagef(chatmodel.ErrInputValidation, "unsupported transport %q", loc.Kind)
}
