package authflow

import (
	"context"
	"time"
)

// WorkflowType identifies one of the supported authentication workflows.
// The type is chosen at [Controller.StartWorkflow] and is immutable for the
// lifetime of the workflow instance.
type WorkflowType uint8

const (
	// WorkflowLogin is the credential → MFA → biometric login sequence.
	WorkflowLogin WorkflowType = iota
	// WorkflowRegister is the registration sequence ending in email verification.
	WorkflowRegister
	// WorkflowSecuritySetup configures MFA, biometric unlock, and backup codes.
	WorkflowSecuritySetup
	// WorkflowPasswordChange re-authenticates and applies a new password.
	WorkflowPasswordChange
	// WorkflowSocialLogin authenticates through an external OAuth provider.
	WorkflowSocialLogin
	// WorkflowAccountRecovery recovers access to a locked-out account.
	WorkflowAccountRecovery

	workflowTypeCount
)

// String returns the stable lower-snake name used in analytics events and
// exported reports.
func (t WorkflowType) String() string {
	switch t {
	case WorkflowLogin:
		return "login"
	case WorkflowRegister:
		return "register"
	case WorkflowSecuritySetup:
		return "security_setup"
	case WorkflowPasswordChange:
		return "password_change"
	case WorkflowSocialLogin:
		return "social_login"
	case WorkflowAccountRecovery:
		return "account_recovery"
	default:
		return "unknown"
	}
}

// StepID names a single stage within a workflow. Registry step IDs are unique
// within one workflow type; the universal states below are shared by all types.
type StepID string

const (
	// StepIdle is the state before StartWorkflow and after Reset.
	StepIdle StepID = "idle"
	// StepInitializing is the state between StartWorkflow and the Initialize event.
	StepInitializing StepID = "initializing"
	// StepCompleted is the terminal success state. Only Reset is legal from it.
	StepCompleted StepID = "completed"
	// StepCancelled is the terminal state after Cancel. Only Reset is legal from it.
	StepCancelled StepID = "cancelled"
	// StepError is the terminal failure state, reached when the retry budget of a
	// step is exhausted. Only Reset is legal from it.
	StepError StepID = "error"
	// StepSuccess is the shared final registry step of every built-in workflow.
	StepSuccess StepID = "success"
)

// terminalState reports whether id is one of the universal terminal states.
func terminalState(id StepID) bool {
	return id == StepCompleted || id == StepCancelled || id == StepError
}

// TransitionEvent drives the workflow state machine. Events not legal for the
// current step are recorded as rejected transitions, never raised as errors.
type TransitionEvent uint8

const (
	// EventInitialize moves a freshly started workflow onto its first step.
	EventInitialize TransitionEvent = iota
	// EventNext advances past a step that needs no backend operation.
	EventNext
	// EventPrevious returns to the previously visited step.
	EventPrevious
	// EventSkip bypasses a skippable step.
	EventSkip
	// EventCancel aborts the workflow from any non-terminal state.
	EventCancel
	// EventSubmitData submits the collected data for the current step.
	EventSubmitData
	// EventStepSucceeded reports a successful step execution. Dispatched by the
	// controller when the step executor resolves.
	EventStepSucceeded
	// EventStepFailed reports a failed step execution.
	EventStepFailed
	// EventRetry re-runs the current step's operation with its last payload.
	EventRetry
	// EventReset destroys the workflow instance and returns to Idle.
	EventReset

	transitionEventCount
)

// String returns the stable lower-snake name used in action logs and analytics.
func (e TransitionEvent) String() string {
	switch e {
	case EventInitialize:
		return "initialize"
	case EventNext:
		return "next"
	case EventPrevious:
		return "previous"
	case EventSkip:
		return "skip"
	case EventCancel:
		return "cancel"
	case EventSubmitData:
		return "submit_data"
	case EventStepSucceeded:
		return "step_succeeded"
	case EventStepFailed:
		return "step_failed"
	case EventRetry:
		return "retry"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// StepDefinition is the immutable registry metadata for one workflow step.
type StepDefinition struct {
	ID          StepID
	Title       string
	Description string
	Required    bool
	Skippable   bool
}

// Payload carries the data submitted for the current step (credentials,
// profile fields, security configuration) and the result data merged back
// after a successful execution. Keys are step-specific.
type Payload map[string]any

// UserResult is returned by backend operations that authenticate or create a
// user. Token fields are opaque to authflow; they are merged into step data
// for the caller to consume.
type UserResult struct {
	UserID       string
	Email        string
	DisplayName  string
	AccessToken  string
	RefreshToken string
}

// AuthOperations is the capability interface callers must implement to bind
// workflow steps to their authentication backend. Every call must honor ctx
// cancellation: the executor cancels the context on timeout and on workflow
// cancellation.
type AuthOperations interface {
	SubmitCredentials(ctx context.Context, email, password string) (*UserResult, error)
	VerifyMFA(ctx context.Context, code string) (bool, error)
	AuthenticateBiometric(ctx context.Context) (bool, error)
	SubmitSecurityConfig(ctx context.Context, config map[string]any) (bool, error)
	SocialLogin(ctx context.Context, provider string) (*UserResult, error)
	SubmitRegistration(ctx context.Context, profile map[string]any) (*UserResult, error)
	RequestAccountRecovery(ctx context.Context, email string) (bool, error)
	VerifyEmail(ctx context.Context, code string) (bool, error)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) (bool, error)
}

// NavigationFlags are the derived affordances the presentation layer uses to
// enable or disable its controls. The flags are always consistent with what
// the state machine will currently accept.
type NavigationFlags struct {
	CanGoNext     bool
	CanGoPrevious bool
	CanSkip       bool
	CanCancel     bool
}

// ActionLogEntry records one dispatched event, accepted or rejected.
// Duration is the time spent on the step the event left, zero when the event
// did not move the workflow.
type ActionLogEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Event     TransitionEvent `json:"-"`
	EventName string          `json:"event"`
	Step      StepID          `json:"step"`
	Rejected  bool            `json:"rejected,omitempty"`
	Duration  time.Duration   `json:"duration,omitempty"`
}

// ErrorLogEntry records one step failure observed by the workflow.
type ErrorLogEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Step        StepID          `json:"step"`
	Event       TransitionEvent `json:"-"`
	EventName   string          `json:"event"`
	Message     string          `json:"message"`
	Recoverable bool            `json:"recoverable"`
}

// ContextSnapshot is the read-only view model over the active workflow
// instance. The presentation layer renders from it and never mutates
// workflow state directly.
type ContextSnapshot struct {
	InstanceID   string
	WorkflowType WorkflowType
	CurrentStep  StepID
	PreviousStep StepID
	Progress     float64
	Flags        NavigationFlags
	RetryCount   int
	StartedAt    time.Time
	LastError    string
	StepData     map[StepID]Payload
	Actions      []ActionLogEntry
	Errors       []ErrorLogEntry
}

// AnalyticsSnapshot is the derived, read-only analytics view over a workflow
// instance. It is computed on demand and never stored separately.
type AnalyticsSnapshot struct {
	InstanceID          string                   `json:"instance_id"`
	Workflow            string                   `json:"workflow"`
	TotalDuration       time.Duration            `json:"total_duration"`
	StepDurations       map[StepID]time.Duration `json:"step_durations"`
	ErrorCount          int                      `json:"error_count"`
	RetryCount          int                      `json:"retry_count"`
	RejectedTransitions int                      `json:"rejected_transitions"`
	CompletionRatio     float64                  `json:"completion_ratio"`
}
