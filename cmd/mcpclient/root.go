package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpclient/assistants"
	"github.com/effective-security/mcpclient/callbacks"
	"github.com/effective-security/mcpclient/chat"
	"github.com/effective-security/mcpclient/chatmodel"
	"github.com/effective-security/mcpclient/mcp"
	"github.com/effective-security/mcpclient/pkg/llmfactory"
	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/tools"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpclient", "cmd")

const version = "0.1.0"

var logLevels = map[string]xlog.LogLevel{
	"error":   xlog.ERROR,
	"warning": xlog.WARNING,
	"info":    xlog.INFO,
	"debug":   xlog.DEBUG,
}

type flags struct {
	config    string
	provider  string
	model     string
	maxTokens int
	logLevel  string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "mcpclient <server>",
		Short: "MCP client with tool use",
		Long: "mcpclient connects to an MCP server and answers the queries with the LLM,\n" +
			"the model may call the tools exposed by the server.\n\n" +
			"The server is a path to a .py or .js script, a stdio://<command> to start,\n" +
			"an http(s):// streamable endpoint, or an sse:// endpoint.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(f.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), f, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.logLevel, "log-level", "error", "Log level: error|warning|info|debug")
	pf.StringVar(&f.config, "config", "", "Path to the LLM providers config, by default ANTHROPIC_API_KEY and OPENAI_API_KEY are used")

	fl := cmd.Flags()
	fl.StringVar(&f.provider, "provider", "", "LLM provider: ANTHROPIC|OPENAI")
	fl.StringVar(&f.model, "model", "", "Model name, it must be listed in the config unless --provider is set")
	fl.IntVar(&f.maxTokens, "max-tokens", 0, "Cap of output tokens for every completion call")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Print LLM calls and query stats")

	cmd.AddCommand(newToolsCmd())
	return cmd
}

func setupLogging(level string) error {
	l, ok := logLevels[strings.ToLower(level)]
	if !ok {
		return errors.WithMessagef(chatmodel.ErrInputValidation, "unsupported log level: %q", level)
	}
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(l)
	return nil
}

func runChat(ctx context.Context, f *flags, server string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// validate the server before creating the model
	if _, err := mcp.ParseLocator(server); err != nil {
		return err
	}

	cfg, err := llmfactory.LoadConfig(f.config)
	if err != nil {
		return errors.WithMessage(err, "failed to load LLM config")
	}
	model, err := selectModel(llmfactory.New(cfg), f)
	if err != nil {
		return err
	}
	maxTokens := f.maxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.MaxTokens
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mcp.Connect(ctx, server, mcp.WithStderr(os.Stderr))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.KV(xlog.ERROR, "reason", "close", "err", err.Error())
		}
	}()

	list, err := client.ListTools(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nConnected to server with tools: %v\n", tools.Names(list))

	mode := callbacks.ModeDefault
	if f.verbose {
		mode = callbacks.ModeVerbose
	}
	cb := callbacks.NewFanout(
		callbacks.NewPrinter(out, mode),
		callbacks.NewPackageLogger(logger),
	)

	var sessionOpts []chat.Option
	if f.verbose {
		sp := callbacks.NewScratchpad(mode)
		cb.Add(sp)
		sessionOpts = append(sessionOpts, chat.WithScratchpad(sp))
	}

	assistant := assistants.NewAssistant(model, client,
		assistants.WithMaxTokens(maxTokens),
		assistants.WithCallback(cb),
	)

	logger.ContextKV(ctx, xlog.DEBUG,
		"server", client.Locator().String(),
		"model", model.GetName(),
		"provider", model.GetProviderType(),
		"max_tokens", maxTokens,
	)

	err = chat.NewSession(assistant, in, out, sessionOpts...).Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprint(out, "\nInterrupt received, cleaning up resources...\n")
		return nil
	}
	return err
}

func selectModel(factory llmfactory.Factory, f *flags) (llms.Model, error) {
	switch {
	case f.provider != "":
		return factory.Model(f.provider, f.model)
	case f.model != "":
		return factory.ModelByName(f.model)
	default:
		return factory.AssistantModel(assistants.DefaultName)
	}
}
