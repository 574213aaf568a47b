package authflow

import "fmt"

// The registry is the static decomposition of every workflow type into its
// ordered step list. It is read-only; an unknown workflow type is a
// programming error and fails fast.

var workflowSteps = map[WorkflowType][]StepDefinition{
	WorkflowLogin: {
		{ID: "credentials", Title: "Sign in", Description: "Enter email and password", Required: true},
		{ID: "mfa", Title: "Two-factor code", Description: "Enter the 6-digit verification code", Skippable: true},
		{ID: "biometric", Title: "Biometric unlock", Description: "Confirm with fingerprint or face", Skippable: true},
		{ID: StepSuccess, Title: "Signed in", Required: true},
	},
	WorkflowRegister: {
		{ID: "personal_info", Title: "About you", Description: "Name and contact details", Required: true},
		{ID: "credentials", Title: "Choose credentials", Description: "Email and password for the new account", Required: true},
		{ID: "security_setup", Title: "Secure your account", Description: "Optional MFA and recovery options", Skippable: true},
		{ID: "email_verification", Title: "Verify email", Description: "Enter the code sent to your inbox", Required: true},
		{ID: StepSuccess, Title: "Account created", Required: true},
	},
	WorkflowSecuritySetup: {
		{ID: "mfa_setup", Title: "Set up two-factor", Description: "Register an authenticator", Skippable: true},
		{ID: "biometric_setup", Title: "Enable biometrics", Description: "Register fingerprint or face unlock", Skippable: true},
		{ID: "backup_codes", Title: "Backup codes", Description: "Store one-time recovery codes", Skippable: true},
		{ID: StepSuccess, Title: "Security updated", Required: true},
	},
	WorkflowPasswordChange: {
		{ID: "current_password", Title: "Current password", Description: "Confirm your current password", Required: true},
		{ID: "new_password", Title: "New password", Description: "Choose a new password", Required: true},
		{ID: "confirmation", Title: "Apply change", Description: "Apply the new password", Required: true},
		{ID: StepSuccess, Title: "Password changed", Required: true},
	},
	WorkflowSocialLogin: {
		{ID: "provider_selection", Title: "Choose provider", Description: "Pick a sign-in provider", Required: true},
		{ID: "oauth_exchange", Title: "Authorize", Description: "Complete the provider handshake", Required: true},
		{ID: StepSuccess, Title: "Signed in", Required: true},
	},
	WorkflowAccountRecovery: {
		{ID: "identify_account", Title: "Find your account", Description: "Enter the account email", Required: true},
		{ID: "verify_identity", Title: "Verify identity", Description: "Enter the recovery code", Required: true},
		{ID: "reset_password", Title: "Reset password", Description: "Choose a new password", Required: true},
		{ID: StepSuccess, Title: "Account recovered", Required: true},
	},
}

// operationKind names the backend operation bound to a step. Steps with
// opNone collect data locally and advance without the executor.
type operationKind uint8

const (
	opNone operationKind = iota
	opSubmitCredentials
	opVerifyMFA
	opBiometric
	opSecurityConfig
	opSocialLogin
	opRegistration
	opRecoveryRequest
	opVerifyEmail
	opChangePassword
)

// stepOperations binds built-in registry steps to backend operations. Steps
// absent here are data-collection steps. Overridden step sequences may reuse
// the built-in step IDs to inherit these bindings.
var stepOperations = map[WorkflowType]map[StepID]operationKind{
	WorkflowLogin: {
		"credentials": opSubmitCredentials,
		"mfa":         opVerifyMFA,
		"biometric":   opBiometric,
	},
	WorkflowRegister: {
		"credentials":        opRegistration,
		"security_setup":     opSecurityConfig,
		"email_verification": opVerifyEmail,
	},
	WorkflowSecuritySetup: {
		"mfa_setup":       opSecurityConfig,
		"biometric_setup": opBiometric,
		"backup_codes":    opSecurityConfig,
	},
	WorkflowPasswordChange: {
		"confirmation": opChangePassword,
	},
	WorkflowSocialLogin: {
		"oauth_exchange": opSocialLogin,
	},
	WorkflowAccountRecovery: {
		"identify_account": opRecoveryRequest,
		"verify_identity":  opVerifyEmail,
		"reset_password":   opSecurityConfig,
	},
}

// Steps returns the ordered step definitions for the workflow type. The
// returned slice is a copy. Unknown workflow types panic: the registry is
// static and a bad type is a caller bug, not a runtime failure.
func Steps(t WorkflowType) []StepDefinition {
	steps, ok := workflowSteps[t]
	if !ok {
		panic(fmt.Sprintf("authflow: unknown workflow type %d", t))
	}
	out := make([]StepDefinition, len(steps))
	copy(out, steps)
	return out
}

func stepOperation(t WorkflowType, id StepID) operationKind {
	ops, ok := stepOperations[t]
	if !ok {
		return opNone
	}
	return ops[id]
}
