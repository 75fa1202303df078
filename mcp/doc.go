// Package mcp provides the tool registry backed by a Model Context Protocol server.
//
// The server is addressed by a locator: a path to a Python or Node script,
// a stdio:// command line, or an HTTP(S) endpoint.
// Connect performs the transport setup and the initialize handshake,
// the returned Client implements tools.Registry.
package mcp
