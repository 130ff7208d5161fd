package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_news_writer/config"
	"ai_news_writer/generator"
)

func TestReadRequest(t *testing.T) {
	req, err := readRequest(filepath.Join("config", "request.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "2026 校园开放日", req.Form.EventName)
	require.Len(t, req.SelectedPhotos, 2)
	assert.Equal(t, []string{"开幕", "舞台"}, req.SelectedPhotos[0].Tags)

	p := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"form":{"eventName":"运动会"},"fullPrompt":"直接写"}`), 0o644))
	req, err = readRequest(p)
	require.NoError(t, err)
	assert.Equal(t, "运动会", req.Form.EventName)
	assert.Equal(t, "直接写", req.FullPrompt)

	_, err = readRequest(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestExampleConfigLoads(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	c, err := config.Load(filepath.Join("config", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", c.LLM.Provider)
	assert.Equal(t, "sk-test", c.LLM.APIKey)
}

func TestBuildLLM(t *testing.T) {
	_, err := buildLLM(context.Background(), config.Default())
	assert.Error(t, err)

	c := config.Default()
	c.LLM = &config.LLMConfig{Provider: "mock"}
	llm, err := buildLLM(context.Background(), c)
	require.NoError(t, err)
	assert.IsType(t, generator.MockLLM{}, llm)
}
