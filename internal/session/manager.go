// Package session runs one question/answer cycle against the remote
// assistant service: thread acquisition, message submission, run execution,
// and polling until the run reaches a terminal state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/askd/internal/assistant"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxWait      = 2 * time.Minute
)

// ErrPollTimeout is returned when a run does not reach a terminal state
// within the configured wait budget.
var ErrPollTimeout = errors.New("run polling exceeded wait budget")

// RunError is a run that reached a terminal state other than completed.
// It is a semantic failure reported by the assistant service, never retried.
type RunError struct {
	RunID  string
	Status string
	Detail string
}

func (e *RunError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("run %s ended with status %s: %s", e.RunID, e.Status, e.Detail)
	}
	return fmt.Sprintf("run %s ended with status %s", e.RunID, e.Status)
}

// AssistantClient is the subset of the assistant service used for conversations.
type AssistantClient interface {
	CreateThread(ctx context.Context) (assistant.Thread, error)
	AddMessage(ctx context.Context, threadID, role, content string) (assistant.Message, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (assistant.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (assistant.Run, error)
	ListMessages(ctx context.Context, threadID string) ([]assistant.Message, error)
}

// Answer is the result of one ask cycle. ThreadID is always set (new or
// reused) so callers can continue the conversation.
type Answer struct {
	Text     string
	ThreadID string
}

// Manager owns the per-question conversation state machine.
type Manager struct {
	client       AssistantClient
	assistantID  string
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
}

// NewManager creates a Manager. Non-positive pollInterval or maxWait fall
// back to 2s and 2m.
func NewManager(client AssistantClient, assistantID string, pollInterval, maxWait time.Duration) *Manager {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &Manager{
		client:       client,
		assistantID:  assistantID,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		logger:       slog.Default(),
	}
}

// Ask submits question on the given thread (creating one when threadID is
// empty), runs the assistant, and waits for the answer. A caller-supplied
// thread identifier is trusted verbatim; if it does not exist remotely the
// service rejects the message append.
func (m *Manager) Ask(ctx context.Context, threadID, question string) (Answer, error) {
	if threadID == "" {
		thread, err := m.client.CreateThread(ctx)
		if err != nil {
			return Answer{}, err
		}
		threadID = thread.ID
	}

	// The message must land before the run is created; the service's own
	// history ordering is authoritative.
	if _, err := m.client.AddMessage(ctx, threadID, "user", question); err != nil {
		return Answer{}, err
	}

	run, err := m.client.CreateRun(ctx, threadID, m.assistantID)
	if err != nil {
		return Answer{}, err
	}

	if err := m.waitForRun(ctx, threadID, run.ID); err != nil {
		return Answer{}, err
	}

	messages, err := m.client.ListMessages(ctx, threadID)
	if err != nil {
		return Answer{}, err
	}

	text, err := latestAssistantText(messages)
	if err != nil {
		return Answer{}, fmt.Errorf("thread %s: %w", threadID, err)
	}

	return Answer{Text: text, ThreadID: threadID}, nil
}

// waitForRun polls the run's status until it completes, fails terminally,
// exceeds the wait budget, or ctx is cancelled.
func (m *Manager) waitForRun(ctx context.Context, threadID, runID string) error {
	budget := time.NewTimer(m.maxWait)
	defer budget.Stop()

	for {
		run, err := m.client.GetRun(ctx, threadID, runID)
		if err != nil {
			return err
		}
		m.logger.Debug("run status", "run_id", runID, "status", run.Status)

		switch run.Status {
		case assistant.RunStatusQueued, assistant.RunStatusInProgress, assistant.RunStatusCancelling:
			// still working
		case assistant.RunStatusCompleted:
			return nil
		default:
			runErr := &RunError{RunID: runID, Status: run.Status}
			if run.LastError != nil {
				runErr.Detail = run.LastError.Message
			}
			return runErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-budget.C:
			return fmt.Errorf("run %s after %s: %w", runID, m.maxWait, ErrPollTimeout)
		case <-time.After(m.pollInterval):
		}
	}
}

// latestAssistantText picks the newest assistant-authored message by
// created_at timestamp and returns its first text content block. Filtering
// by role and timestamp avoids trusting the list's positional ordering.
func latestAssistantText(messages []assistant.Message) (string, error) {
	var latest *assistant.Message
	for i := range messages {
		if messages[i].Role != "assistant" {
			continue
		}
		if latest == nil || messages[i].CreatedAt > latest.CreatedAt {
			latest = &messages[i]
		}
	}
	if latest == nil {
		return "", errors.New("no assistant message found")
	}
	for _, c := range latest.Content {
		if c.Type == "text" {
			return c.Text.Value, nil
		}
	}
	return "", errors.New("assistant message has no text content")
}
