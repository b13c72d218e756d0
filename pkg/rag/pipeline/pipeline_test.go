package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoStage(name string, deps ...string) Stage {
	return Stage{
		Name:      name,
		DependsOn: deps,
		Run: func(ctx context.Context, input StageInput) (string, error) {
			return name + " output", nil
		},
	}
}

func TestNew_RejectsUnknownDependency(t *testing.T) {
	_, err := New([]Stage{
		echoStage("plan"),
		echoStage("execute", "nonexistent"),
	})
	require.Error(t, err)

	var depErr *DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "execute", depErr.Stage)
}

func TestNew_RejectsCycle(t *testing.T) {
	_, err := New([]Stage{
		echoStage("a", "b"),
		echoStage("b", "c"),
		echoStage("c", "a"),
	})
	require.Error(t, err)

	var depErr *DependencyError
	require.True(t, errors.As(err, &depErr))
}

func TestNew_RejectsSelfDependencyAndDuplicates(t *testing.T) {
	_, err := New([]Stage{echoStage("a", "a")})
	require.Error(t, err)

	_, err = New([]Stage{echoStage("a"), echoStage("a")})
	require.Error(t, err)
}

func TestExecute_RunsStagesInDependencyOrder(t *testing.T) {
	var order []string
	record := func(name string, deps ...string) Stage {
		return Stage{
			Name:      name,
			DependsOn: deps,
			Run: func(ctx context.Context, input StageInput) (string, error) {
				order = append(order, name)
				return name, nil
			},
		}
	}

	// Declared out of order on purpose; resolution must follow dependencies.
	p, err := New([]Stage{
		record("respond", "plan", "execute", "review"),
		record("review", "plan", "execute"),
		record("execute", "plan"),
		record("plan"),
	})
	require.NoError(t, err)

	final, err := p.Execute(context.Background(), "request", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"plan", "execute", "review", "respond"}, order)
	assert.Equal(t, "respond", final)
	for _, name := range order {
		assert.Equal(t, StatusDone, p.Status(name))
	}
}

func TestExecute_DependencyOutputsConcatenatedInDeclaredOrder(t *testing.T) {
	var got string
	p, err := New([]Stage{
		echoStage("plan"),
		echoStage("execute", "plan"),
		{
			Name:      "review",
			DependsOn: []string{"plan", "execute"},
			Run: func(ctx context.Context, input StageInput) (string, error) {
				got = input.DependencyOutputs
				return "review output", nil
			},
		},
	})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "request", nil)
	require.NoError(t, err)

	assert.Equal(t, "[plan]\nplan output\n\n[execute]\nexecute output", got)
}

func TestExecute_FailureHaltsDependents(t *testing.T) {
	boom := fmt.Errorf("provider unavailable")
	p, err := New([]Stage{
		echoStage("plan"),
		{
			Name:      "execute",
			DependsOn: []string{"plan"},
			Run: func(ctx context.Context, input StageInput) (string, error) {
				return "", boom
			},
		},
		echoStage("review", "plan", "execute"),
		echoStage("respond", "plan", "execute", "review"),
	})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "request", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, StatusDone, p.Status("plan"))
	assert.Equal(t, StatusFailed, p.Status("execute"))
	assert.Equal(t, StatusPending, p.Status("review"))
	assert.Equal(t, StatusPending, p.Status("respond"))
}

func TestExecute_CancellationStopsPendingStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p, err := New([]Stage{
		{
			Name: "plan",
			Run: func(ctx context.Context, input StageInput) (string, error) {
				cancel()
				return "plan output", nil
			},
		},
		echoStage("execute", "plan"),
	})
	require.NoError(t, err)

	_, err = p.Execute(ctx, "request", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The stage that was running completed naturally; the next never started.
	assert.Equal(t, StatusDone, p.Status("plan"))
	assert.Equal(t, StatusPending, p.Status("execute"))
}

func TestExecute_PassesRequestAndBundle(t *testing.T) {
	bundle := &store.ContextBundle{
		SimilarChunks: []store.ScoredExcerpt{{Text: "remembered fact", Similarity: 0.9}},
	}

	var seen StageInput
	p, err := New([]Stage{{
		Name: "plan",
		Run: func(ctx context.Context, input StageInput) (string, error) {
			seen = input
			return "ok", nil
		},
	}})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "the question", bundle)
	require.NoError(t, err)
	assert.Equal(t, "the question", seen.Request)
	assert.Same(t, bundle, seen.Bundle)
}

func TestRenderBundle(t *testing.T) {
	assert.Equal(t, "(no stored context)", RenderBundle(nil))
	assert.Equal(t, "(no stored context)", RenderBundle(&store.ContextBundle{}))

	bundle := &store.ContextBundle{
		SimilarChunks:      []store.ScoredExcerpt{{Text: "fact", Similarity: 0.87}},
		RecentUserMessages: []store.MemoryMessage{{MessageText: "hi there"}},
		FileExcerpts:       []store.FileExcerpt{{FileName: "doc.pdf", Excerpt: "intro"}},
	}
	rendered := RenderBundle(bundle)
	assert.Contains(t, rendered, "(0.87) fact")
	assert.Contains(t, rendered, "hi there")
	assert.Contains(t, rendered, "doc.pdf: intro")
	assert.NotContains(t, rendered, "Recent messages in this chat")
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type fakeLLM struct {
	reply   string
	prompts []string
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	if len(history) > 0 {
		f.prompts = append(f.prompts, history[len(history)-1].Content)
	}
	return f.reply, nil
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, nil
}

func TestNewAssistantPipeline_BuildsValidGraph(t *testing.T) {
	p, err := NewAssistantPipeline(&fakeLLM{reply: "fine"}, nopLogger{})
	require.NoError(t, err)

	final, err := p.Execute(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "fine", final)

	for _, name := range []string{StagePlan, StageExecute, StageReview, StageRespond} {
		assert.Equal(t, StatusDone, p.Status(name))
	}
}
