package authflow

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowAlreadyActive is returned by StartWorkflow while another
	// workflow instance is running on the same controller.
	ErrWorkflowAlreadyActive = errors.New("workflow already active")
	// ErrNoActiveWorkflow is returned by Dispatch when no workflow has been started.
	ErrNoActiveWorkflow = errors.New("no active workflow")
	// ErrWorkflowTerminal is returned by Dispatch when the active workflow has
	// reached a terminal state and only Reset is legal.
	ErrWorkflowTerminal = errors.New("workflow in terminal state")
	// ErrConcurrentExecution is returned when a step execution is requested
	// while another one is still in flight for the same instance.
	ErrConcurrentExecution = errors.New("step execution already in flight")
	// ErrStepTimeout is the failure recorded when a step execution exceeds its
	// configured deadline. Recoverable up to the retry budget.
	ErrStepTimeout = errors.New("step execution deadline exceeded")
	// ErrRetryBudgetExceeded is recorded when a step fails after its retry
	// budget is exhausted. It forces the workflow into the Error state.
	ErrRetryBudgetExceeded = errors.New("step retry budget exceeded")
	// ErrOperationRejected is the failure recorded when the backend resolves a
	// verification operation with a negative result (wrong MFA code, biometric
	// mismatch, rejected security configuration).
	ErrOperationRejected = errors.New("operation rejected by backend")
	// ErrStepNotExecutable is returned when SubmitData or Retry targets a step
	// with no bound backend operation and no data-collection transition.
	ErrStepNotExecutable = errors.New("step has no executable operation")
	// ErrOperationsNotConfigured is returned by Build when no AuthOperations
	// capability was provided.
	ErrOperationsNotConfigured = errors.New("auth operations capability required")
	// ErrControllerClosed is returned by controller operations after Close.
	ErrControllerClosed = errors.New("controller closed")
	// ErrUnsupportedReportFormat is returned by ExportReport for formats other
	// than "json".
	ErrUnsupportedReportFormat = errors.New("unsupported report format")
	// ErrHistoryDisabled is returned by History when no history store is
	// configured.
	ErrHistoryDisabled = errors.New("history store disabled")
	// ErrRedisClientRequired is returned by Build when history is enabled but
	// no Redis client was provided.
	ErrRedisClientRequired = errors.New("history requires a redis client")
)

// StepExecutionError wraps a step execution failure with the step it occurred on, the
// attempt number (1-based), and whether the workflow may still retry it.
// It is carried in StepFailed event payloads and in the workflow error log.
type StepExecutionError struct {
	Step        StepID
	Attempt     int
	Recoverable bool
	Err         error
}

func (e *StepExecutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("step %s attempt %d: %v", e.Step, e.Attempt, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// recoverable classifies an execution failure. Timeouts and backend rejections
// are retryable; only budget exhaustion is fatal, and that is decided by the
// engine, not here.
func recoverable(err error) bool {
	return !errors.Is(err, ErrRetryBudgetExceeded)
}
