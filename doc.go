// Package authflow provides a framework-independent state machine for multi-step
// authentication workflows: login with MFA and biometric step-up, registration,
// security setup, password change, social login, and account recovery.
//
// The package is designed to run outside any UI runtime: workflow truth lives in
// an explicitly invoked [Controller] built through [Builder.Build], and the
// presentation layer only reads [ContextSnapshot] view models and calls
// Controller operations in response to user intent.
//
// # Architecture boundaries
//
// authflow is the public surface. It exposes [Controller], [Builder], [Config],
// and value types (StepDefinition, ContextSnapshot, AnalyticsSnapshot, etc.).
// The concrete authentication backend is injected behind the [AuthOperations]
// capability and never implemented here. Workflow history persistence lives
// under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Perform credential validation, password-policy scoring, or any backend
//     protocol work; those belong to the [AuthOperations] implementation.
//   - Render UI, navigate, or cache view state.
//   - Expose Redis clients or internal stores in its public API.
//
// # Failure contract
//
// State-machine transitions never fail: an event that is illegal for the
// current step is recorded as a rejected transition and leaves the workflow
// unchanged. All fallibility is pushed into the step executor, whose outcomes
// re-enter the machine as StepSucceeded/StepFailed events.
package authflow
