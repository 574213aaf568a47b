package authflow

import "testing"

func TestStepsKnownWorkflows(t *testing.T) {
	for wt := WorkflowType(0); wt < workflowTypeCount; wt++ {
		steps := Steps(wt)
		if len(steps) < 3 {
			t.Fatalf("%s: expected at least 3 steps, got %d", wt, len(steps))
		}
		if steps[len(steps)-1].ID != StepSuccess {
			t.Fatalf("%s: expected final step %q, got %q", wt, StepSuccess, steps[len(steps)-1].ID)
		}
		seen := make(map[StepID]struct{}, len(steps))
		for _, def := range steps {
			if _, dup := seen[def.ID]; dup {
				t.Fatalf("%s: duplicate step ID %q", wt, def.ID)
			}
			seen[def.ID] = struct{}{}
		}
	}
}

func TestStepsReturnsCopy(t *testing.T) {
	first := Steps(WorkflowLogin)
	first[0].Title = "mutated"
	second := Steps(WorkflowLogin)
	if second[0].Title == "mutated" {
		t.Fatal("Steps must return a defensive copy")
	}
}

func TestStepsUnknownWorkflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown workflow type")
		}
	}()
	Steps(workflowTypeCount)
}

func TestStepOperationBindings(t *testing.T) {
	cases := []struct {
		workflow WorkflowType
		step     StepID
		want     operationKind
	}{
		{WorkflowLogin, "credentials", opSubmitCredentials},
		{WorkflowLogin, "mfa", opVerifyMFA},
		{WorkflowLogin, "biometric", opBiometric},
		{WorkflowLogin, StepSuccess, opNone},
		{WorkflowRegister, "personal_info", opNone},
		{WorkflowRegister, "credentials", opRegistration},
		{WorkflowRegister, "email_verification", opVerifyEmail},
		{WorkflowPasswordChange, "current_password", opNone},
		{WorkflowPasswordChange, "confirmation", opChangePassword},
		{WorkflowSocialLogin, "oauth_exchange", opSocialLogin},
		{WorkflowAccountRecovery, "identify_account", opRecoveryRequest},
	}
	for _, tc := range cases {
		if got := stepOperation(tc.workflow, tc.step); got != tc.want {
			t.Errorf("stepOperation(%s, %s) = %d, want %d", tc.workflow, tc.step, got, tc.want)
		}
	}
}

func TestWorkflowTypeStrings(t *testing.T) {
	for wt := WorkflowType(0); wt < workflowTypeCount; wt++ {
		if wt.String() == "unknown" {
			t.Fatalf("workflow type %d has no name", wt)
		}
	}
	if workflowTypeCount.String() != "unknown" {
		t.Fatal("out-of-range workflow type must stringify as unknown")
	}
}
