package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/effective-security/mcpclient/chatmodel"
	"github.com/effective-security/mcpclient/pkg/llmfactory"
	"github.com/effective-security/mcpclient/pkg/llms"
	"github.com/effective-security/mcpclient/mocks/mockllms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRootCmd_Args(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s), received 0")
}

func TestRootCmd_InvalidServer(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"server.txt"})
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("quit\n"))

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, chatmodel.ErrInputValidation)
	assert.Empty(t, out.String())
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--log-level", "loud", "server.py"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.EqualError(t, err, `unsupported log level: "loud": invalid input`)
	assert.ErrorIs(t, err, chatmodel.ErrInputValidation)

	require.NoError(t, setupLogging("DEBUG"))
	require.NoError(t, setupLogging("error"))
}

type fakeFactory struct {
	llmfactory.Factory
	model llms.Model
	calls []string
}

func (f *fakeFactory) Model(providerType, modelName string) (llms.Model, error) {
	f.calls = append(f.calls, "type:"+providerType+"/"+modelName)
	return f.model, nil
}

func (f *fakeFactory) ModelByName(preferredModels ...string) (llms.Model, error) {
	f.calls = append(f.calls, "name:"+strings.Join(preferredModels, ","))
	return f.model, nil
}

func (f *fakeFactory) AssistantModel(assistantName string, _ ...string) (llms.Model, error) {
	f.calls = append(f.calls, "assistant:"+assistantName)
	return f.model, nil
}

func TestSelectModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mockllms.NewMockModel(ctrl)
	f := &fakeFactory{model: m}

	for _, fl := range []*flags{
		{provider: "OPENAI", model: "gpt-4o"},
		{provider: "ANTHROPIC"},
		{model: "gpt-4o"},
		{},
	} {
		got, err := selectModel(f, fl)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	assert.Equal(t, []string{"type:OPENAI/gpt-4o", "type:ANTHROPIC/", "name:gpt-4o", "assistant:mcpclient"}, f.calls)
}
