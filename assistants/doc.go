// Package assistants provides the tool-use loop that turns a user query into
// an exchange between the LLM and the tools of the registry.
package assistants
