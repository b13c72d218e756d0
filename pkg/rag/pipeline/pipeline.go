package pipeline

import (
	"context"
	"fmt"
	"strings"

	"ai-assistant-be/pkg/store"
)

// Status tracks one stage through its lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// StageInput is what every stage receives: the original request, the
// assembled context bundle, and the concatenated outputs of its completed
// dependencies in declared order.
type StageInput struct {
	Request           string
	Bundle            *store.ContextBundle
	DependencyOutputs string
}

// Stage is one node in the processing graph.
type Stage struct {
	Name      string
	DependsOn []string
	Run       func(ctx context.Context, input StageInput) (string, error)
}

// DependencyError reports an invalid stage graph. It is raised at
// construction time only; a validated pipeline cannot hit it during Execute.
type DependencyError struct {
	Stage  string
	Reason string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %q: %s", e.Stage, e.Reason)
}

// Pipeline executes a fixed set of stages in dependency order. One Pipeline
// value serves one request; it is not safe for reuse across requests.
type Pipeline struct {
	stages   []Stage
	statuses map[string]Status
	outputs  map[string]string
}

// New validates the stage graph: names must be unique, every dependency must
// name a declared stage, and the dependency relation must be acyclic.
func New(stages []Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline requires at least one stage")
	}

	declared := make(map[string]bool, len(stages))
	for _, s := range stages {
		if s.Name == "" {
			return nil, &DependencyError{Stage: s.Name, Reason: "stage name is empty"}
		}
		if declared[s.Name] {
			return nil, &DependencyError{Stage: s.Name, Reason: "stage declared twice"}
		}
		if s.Run == nil {
			return nil, &DependencyError{Stage: s.Name, Reason: "stage has no run function"}
		}
		declared[s.Name] = true
	}

	for _, s := range stages {
		for _, dep := range s.DependsOn {
			if !declared[dep] {
				return nil, &DependencyError{Stage: s.Name, Reason: fmt.Sprintf("unknown dependency %q", dep)}
			}
			if dep == s.Name {
				return nil, &DependencyError{Stage: s.Name, Reason: "stage depends on itself"}
			}
		}
	}

	if cycle := findCycle(stages); cycle != "" {
		return nil, &DependencyError{Stage: cycle, Reason: "dependency cycle detected"}
	}

	statuses := make(map[string]Status, len(stages))
	for _, s := range stages {
		statuses[s.Name] = StatusPending
	}

	return &Pipeline{
		stages:   stages,
		statuses: statuses,
		outputs:  make(map[string]string, len(stages)),
	}, nil
}

// findCycle runs a three-color depth-first search over the dependency edges
// and returns the name of a stage on a cycle, or "".
func findCycle(stages []Stage) string {
	deps := make(map[string][]string, len(stages))
	for _, s := range stages {
		deps[s.Name] = s.DependsOn
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(stages))

	var visit func(name string) string
	visit = func(name string) string {
		color[name] = gray
		for _, dep := range deps[name] {
			switch color[dep] {
			case gray:
				return dep
			case white:
				if found := visit(dep); found != "" {
					return found
				}
			}
		}
		color[name] = black
		return ""
	}

	for _, s := range stages {
		if color[s.Name] == white {
			if found := visit(s.Name); found != "" {
				return found
			}
		}
	}
	return ""
}

// Execute resolves stages by dependency readiness rather than declared order.
// A stage runs only after every dependency is done. The first failure marks
// the pipeline failed and nothing that depends on the failed stage (or that
// has not started yet) runs. The returned string is the output of the stage
// that completed last.
func (p *Pipeline) Execute(ctx context.Context, request string, bundle *store.ContextBundle) (string, error) {
	completed := 0
	lastOutput := ""

	for completed < len(p.stages) {
		stage, ok := p.nextReady()
		if !ok {
			// Unreachable after construction-time validation.
			return "", &DependencyError{Reason: "no runnable stage with pending work remaining"}
		}

		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("pipeline canceled before stage %q: %w", stage.Name, err)
		}

		p.statuses[stage.Name] = StatusRunning
		output, err := stage.Run(ctx, StageInput{
			Request:           request,
			Bundle:            bundle,
			DependencyOutputs: p.dependencyOutputs(stage),
		})
		if err != nil {
			p.statuses[stage.Name] = StatusFailed
			return "", fmt.Errorf("stage %q failed: %w", stage.Name, err)
		}

		p.statuses[stage.Name] = StatusDone
		p.outputs[stage.Name] = output
		lastOutput = output
		completed++
	}

	return lastOutput, nil
}

// nextReady picks the first declared stage that is pending with all
// dependencies done.
func (p *Pipeline) nextReady() (Stage, bool) {
	for _, s := range p.stages {
		if p.statuses[s.Name] != StatusPending {
			continue
		}
		ready := true
		for _, dep := range s.DependsOn {
			if p.statuses[dep] != StatusDone {
				ready = false
				break
			}
		}
		if ready {
			return s, true
		}
	}
	return Stage{}, false
}

func (p *Pipeline) dependencyOutputs(stage Stage) string {
	var parts []string
	for _, dep := range stage.DependsOn {
		if out, ok := p.outputs[dep]; ok {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", dep, out))
		}
	}
	return strings.Join(parts, "\n\n")
}

// Status reports a stage's state; useful after Execute returns.
func (p *Pipeline) Status(name string) Status {
	s, ok := p.statuses[name]
	if !ok {
		return ""
	}
	return s
}

// Output returns a completed stage's output.
func (p *Pipeline) Output(name string) (string, bool) {
	out, ok := p.outputs[name]
	return out, ok
}
