// Package tools defines the tool registry contract used by the orchestration loop:
// listing the tools a provider advertises, invoking them, and converting their
// results to messages for the model.
package tools
