package pipeline

import (
	"context"
	"fmt"
	"strings"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/store"
)

// Stage names for the assistant graph.
const (
	StagePlan    = "plan"
	StageExecute = "execute"
	StageReview  = "review"
	StageRespond = "respond"
)

const planPrompt = `You are a strategic planner who breaks down user requests into clear,
actionable subgoals. Analyze the request below together with the retrieved context and
produce a short numbered plan of the steps needed to answer it.

Request:
%s

Retrieved context:
%s

Plan:`

const executePrompt = `You are a highly efficient executor who gets things done with
attention to detail. Carry out the plan below against the retrieved context and produce
the working answer material.

Request:
%s

Retrieved context:
%s

%s

Answer material:`

const reviewPrompt = `You are an expert critic. Evaluate the answer material below for
accuracy, completeness, and helpfulness against the original request, and state concrete
improvements if any are needed. Keep it brief.

Request:
%s

%s

Critique:`

const respondPrompt = `You are an expert responder. Using the plan, answer material, and
critique below, write the final reply to the user. Be accurate, complete, and helpful.
Reply in plain conversational text with no meta commentary.

Request:
%s

Retrieved context:
%s

%s

Final reply:`

// NewAssistantPipeline builds the four-stage assistant graph. Edges:
// execute after plan, review after plan and execute, respond after all three.
func NewAssistantPipeline(provider llm.LLMProvider, log logger.ILogger) (*Pipeline, error) {
	generate := func(stageName, prompt string, temperature float64) func(ctx context.Context, input StageInput) (string, error) {
		return func(ctx context.Context, input StageInput) (string, error) {
			output, err := provider.Generate(ctx, prompt, llm.WithTemperature(temperature))
			if err != nil {
				return "", err
			}
			log.Debug("Pipeline", "Stage completed", map[string]interface{}{
				"stage":      stageName,
				"output_len": len(output),
			})
			return strings.TrimSpace(output), nil
		}
	}

	stages := []Stage{
		{
			Name: StagePlan,
			Run: func(ctx context.Context, input StageInput) (string, error) {
				prompt := fmt.Sprintf(planPrompt, input.Request, RenderBundle(input.Bundle))
				return generate(StagePlan, prompt, 0.3)(ctx, input)
			},
		},
		{
			Name:      StageExecute,
			DependsOn: []string{StagePlan},
			Run: func(ctx context.Context, input StageInput) (string, error) {
				prompt := fmt.Sprintf(executePrompt, input.Request, RenderBundle(input.Bundle), input.DependencyOutputs)
				return generate(StageExecute, prompt, 0.7)(ctx, input)
			},
		},
		{
			Name:      StageReview,
			DependsOn: []string{StagePlan, StageExecute},
			Run: func(ctx context.Context, input StageInput) (string, error) {
				prompt := fmt.Sprintf(reviewPrompt, input.Request, input.DependencyOutputs)
				return generate(StageReview, prompt, 0.3)(ctx, input)
			},
		},
		{
			Name:      StageRespond,
			DependsOn: []string{StagePlan, StageExecute, StageReview},
			Run: func(ctx context.Context, input StageInput) (string, error) {
				prompt := fmt.Sprintf(respondPrompt, input.Request, RenderBundle(input.Bundle), input.DependencyOutputs)
				return generate(StageRespond, prompt, 0.7)(ctx, input)
			},
		},
	}

	return New(stages)
}

// RenderBundle flattens a context bundle into prompt text. Sections with no
// entries are omitted.
func RenderBundle(bundle *store.ContextBundle) string {
	if bundle == nil || bundle.IsEmpty() {
		return "(no stored context)"
	}

	var b strings.Builder

	if len(bundle.SimilarChunks) > 0 {
		b.WriteString("Relevant memory:\n")
		for _, c := range bundle.SimilarChunks {
			fmt.Fprintf(&b, "- (%.2f) %s\n", c.Similarity, c.Text)
		}
	}

	if len(bundle.RecentUserMessages) > 0 {
		b.WriteString("Recent messages from this user:\n")
		for _, m := range bundle.RecentUserMessages {
			fmt.Fprintf(&b, "- %s\n", m.MessageText)
		}
	}

	if len(bundle.RecentChatMessages) > 0 {
		b.WriteString("Recent messages in this chat:\n")
		for _, m := range bundle.RecentChatMessages {
			fmt.Fprintf(&b, "- %s\n", m.MessageText)
		}
	}

	if len(bundle.FileExcerpts) > 0 {
		b.WriteString("Uploaded documents:\n")
		for _, f := range bundle.FileExcerpts {
			fmt.Fprintf(&b, "- %s: %s\n", f.FileName, f.Excerpt)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
