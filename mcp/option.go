package mcp

import (
	"io"

	"github.com/effective-security/x/values"
)

const (
	// DefaultClientName is the implementation name sent on initialize
	DefaultClientName = "mcpclient"
	// DefaultClientVersion is the implementation version sent on initialize
	DefaultClientVersion = "v0.1.0"
	// DefaultPythonCommand is the interpreter for .py servers
	DefaultPythonCommand = "python"
	// DefaultNodeCommand is the interpreter for .js servers
	DefaultNodeCommand = "node"
)

// Option configures the client
type Option func(*Options)

// Options for the client
type Options struct {
	Name          string
	Version       string
	PythonCommand string
	NodeCommand   string
	// Env is appended to the environment of the stdio server process
	Env []string
	// Stderr receives the stderr of the stdio server process
	Stderr io.Writer
}

func newOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	o.Name = values.StringsCoalesce(o.Name, DefaultClientName)
	o.Version = values.StringsCoalesce(o.Version, DefaultClientVersion)
	o.PythonCommand = values.StringsCoalesce(o.PythonCommand, DefaultPythonCommand)
	o.NodeCommand = values.StringsCoalesce(o.NodeCommand, DefaultNodeCommand)
	return o
}

// WithName sets the implementation name and version sent to the server.
func WithName(name, version string) Option {
	return func(o *Options) {
		o.Name = name
		o.Version = version
	}
}

// WithPythonCommand sets the interpreter used to start .py servers.
func WithPythonCommand(cmd string) Option {
	return func(o *Options) {
		o.PythonCommand = cmd
	}
}

// WithNodeCommand sets the interpreter used to start .js servers.
func WithNodeCommand(cmd string) Option {
	return func(o *Options) {
		o.NodeCommand = cmd
	}
}

// WithEnv appends KEY=VALUE pairs to the environment of the server process.
func WithEnv(env ...string) Option {
	return func(o *Options) {
		o.Env = append(o.Env, env...)
	}
}

// WithStderr redirects stderr of the server process.
func WithStderr(w io.Writer) Option {
	return func(o *Options) {
		o.Stderr = w
	}
}
