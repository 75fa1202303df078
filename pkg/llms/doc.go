// Package llms provides unified support for interacting with Language Models (LLMs)
// from various providers.
//
// Each subpackage includes a provider-specific implementation of the Model interface.
//
// The `llms.go` file contains the types and interfaces for interacting with different LLMs.
//
// The `generatecontent.go` file contains the messages exchanged with a model,
// and the ordered content blocks it returns.
//
// The `options.go` file provides various options and functions to configure the LLMs.
package llms
