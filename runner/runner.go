// Package runner executes conversation turns with bounded concurrency.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/sweetpotato0/chatflow/config"
	"github.com/sweetpotato0/chatflow/session"
)

// Runner executes single conversation turns under a shared concurrency cap.
type Runner interface {
	// Run asks a conversation one question and returns the reply.
	Run(ctx context.Context, conv *session.Conversation, input string) (string, error)
}

type runner struct {
	semaphore chan struct{}
}

// New creates a runner allowing at most maxConcurrency turns in flight.
func New(maxConcurrency int) (Runner, error) {
	if err := config.ValidateRunnerConfig(maxConcurrency); err != nil {
		return nil, err
	}
	return &runner{
		semaphore: make(chan struct{}, maxConcurrency),
	}, nil
}

// Run executes one turn once a slot is free.
func (r *runner) Run(ctx context.Context, conv *session.Conversation, input string) (string, error) {
	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return conv.Ask(ctx, input)
}

// Task pairs a conversation with one input.
type Task struct {
	ID           string
	Conversation *session.Conversation
	Input        string
}

// Result is the outcome of one task execution.
type Result struct {
	TaskID string
	Output string
	Error  error
}

// ParallelRunner fans tasks out over a shared runner.
type ParallelRunner struct {
	runner Runner
}

// NewParallelRunner creates a parallel runner with the given concurrency cap.
func NewParallelRunner(maxConcurrency int) (*ParallelRunner, error) {
	r, err := New(maxConcurrency)
	if err != nil {
		return nil, err
	}
	return &ParallelRunner{runner: r}, nil
}

// RunParallel executes all tasks concurrently under the concurrency cap and
// returns results in task order. A panicking task yields an error result
// instead of taking the process down.
func (pr *ParallelRunner) RunParallel(ctx context.Context, tasks []*Task) []*Result {
	results := make([]*Result, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(index int, t *Task) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					results[index] = &Result{
						TaskID: t.ID,
						Error:  fmt.Errorf("panic in task %s: %v", t.ID, rec),
					}
				}
			}()

			output, err := pr.runner.Run(ctx, t.Conversation, t.Input)
			results[index] = &Result{
				TaskID: t.ID,
				Output: output,
				Error:  err,
			}
		}(i, task)
	}

	wg.Wait()
	return results
}

// SequentialRunner executes tasks one after another.
type SequentialRunner struct {
	runner Runner
}

// NewSequentialRunner creates a sequential runner.
func NewSequentialRunner() *SequentialRunner {
	r, _ := New(1)
	return &SequentialRunner{runner: r}
}

// RunSequential executes tasks in order, feeding each reply to the next task
// as input. It stops at the first failure.
func (sr *SequentialRunner) RunSequential(ctx context.Context, tasks []*Task) (*Result, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("runner: no tasks to run")
	}

	var lastOutput string
	for _, task := range tasks {
		input := task.Input
		if lastOutput != "" {
			input = lastOutput
		}

		output, err := sr.runner.Run(ctx, task.Conversation, input)
		if err != nil {
			return &Result{
				TaskID: task.ID,
				Output: output,
				Error:  err,
			}, err
		}
		lastOutput = output
	}

	return &Result{
		TaskID: tasks[len(tasks)-1].ID,
		Output: lastOutput,
	}, nil
}

// ConditionFunc decides whether a task should run given the previous result.
type ConditionFunc func(ctx context.Context, previous *Result) (bool, error)

// ConditionalTask is a task gated by a condition.
type ConditionalTask struct {
	Task      *Task
	Condition ConditionFunc
}

// ConditionalRunner executes tasks whose conditions pass.
type ConditionalRunner struct {
	runner Runner
}

// NewConditionalRunner creates a conditional runner.
func NewConditionalRunner() *ConditionalRunner {
	r, _ := New(1)
	return &ConditionalRunner{runner: r}
}

// RunConditional walks the tasks in order, skipping any whose condition
// reports false. A nil condition always runs.
func (cr *ConditionalRunner) RunConditional(ctx context.Context, tasks []*ConditionalTask) ([]*Result, error) {
	results := make([]*Result, 0, len(tasks))
	var lastResult *Result

	for _, ctask := range tasks {
		shouldRun := true
		if ctask.Condition != nil {
			var err error
			shouldRun, err = ctask.Condition(ctx, lastResult)
			if err != nil {
				return results, fmt.Errorf("condition evaluation failed: %w", err)
			}
		}
		if !shouldRun {
			continue
		}

		output, err := cr.runner.Run(ctx, ctask.Task.Conversation, ctask.Task.Input)
		result := &Result{
			TaskID: ctask.Task.ID,
			Output: output,
			Error:  err,
		}
		results = append(results, result)
		lastResult = result

		if err != nil {
			return results, err
		}
	}

	return results, nil
}
