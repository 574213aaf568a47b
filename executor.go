package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// stepExecutor runs the backend operation bound to a step. It enforces the
// single-in-flight rule per workflow instance and the per-step-class deadline;
// the retry budget is enforced by the engine when the resulting StepFailed
// event is applied.
type stepExecutor struct {
	ops AuthOperations
	cfg ExecutorConfig

	mu      sync.Mutex
	pending bool
	cancel  context.CancelFunc
}

func newStepExecutor(ops AuthOperations, cfg ExecutorConfig) *stepExecutor {
	return &stepExecutor{ops: ops, cfg: cfg}
}

// tryAcquire reserves the single execution slot. A false return means another
// execution is still in flight and the caller must reject with
// ErrConcurrentExecution.
func (x *stepExecutor) tryAcquire() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.pending {
		return false
	}
	x.pending = true
	return true
}

func (x *stepExecutor) release() {
	x.mu.Lock()
	x.pending = false
	x.cancel = nil
	x.mu.Unlock()
}

func (x *stepExecutor) inFlight() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.pending
}

// abort cancels the in-flight execution, if any. Used by workflow Cancel and
// Reset; the aborted operation's failure is dropped by the controller because
// the instance is already terminal by the time it resolves.
func (x *stepExecutor) abort() {
	x.mu.Lock()
	cancel := x.cancel
	x.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// execute runs the operation synchronously with the configured deadline. The
// caller must hold the execution slot from tryAcquire and release it after the
// resulting event is dispatched.
func (x *stepExecutor) execute(ctx context.Context, op operationKind, step StepID, attempt int, payload Payload) (Payload, *StepExecutionError) {
	timeout := x.timeoutFor(op)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	x.mu.Lock()
	x.cancel = cancel
	x.mu.Unlock()
	defer cancel()

	type outcome struct {
		result Payload
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := x.invoke(runCtx, op, payload)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, x.classify(runCtx, step, attempt, out.err)
		}
		return out.result, nil
	case <-runCtx.Done():
		// The operation keeps running until it observes cancellation; its
		// late result is discarded through the buffered channel.
		return nil, x.classify(runCtx, step, attempt, runCtx.Err())
	}
}

func (x *stepExecutor) classify(_ context.Context, step StepID, attempt int, err error) *StepExecutionError {
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrStepTimeout
	}
	return &StepExecutionError{
		Step:        step,
		Attempt:     attempt,
		Recoverable: recoverable(err),
		Err:         err,
	}
}

func (x *stepExecutor) timeoutFor(op operationKind) time.Duration {
	switch op {
	case opSubmitCredentials, opRegistration:
		return x.cfg.CredentialTimeout
	case opVerifyMFA:
		return x.cfg.MFATimeout
	case opBiometric:
		return x.cfg.BiometricTimeout
	case opSecurityConfig:
		return x.cfg.SecurityConfigTimeout
	case opSocialLogin:
		return x.cfg.SocialLoginTimeout
	case opRecoveryRequest:
		return x.cfg.RecoveryTimeout
	case opVerifyEmail:
		return x.cfg.VerificationTimeout
	case opChangePassword:
		return x.cfg.PasswordChangeTimeout
	default:
		return x.cfg.CredentialTimeout
	}
}

// invoke maps the bound operation onto the AuthOperations capability. Boolean
// verifications resolve a negative result to ErrOperationRejected so every
// failure re-enters the state machine the same way.
func (x *stepExecutor) invoke(ctx context.Context, op operationKind, payload Payload) (Payload, error) {
	switch op {
	case opSubmitCredentials:
		user, err := x.ops.SubmitCredentials(ctx, stringField(payload, "email"), stringField(payload, "password"))
		if err != nil {
			return nil, err
		}
		return userPayload(user), nil
	case opVerifyMFA:
		return x.boolOp(x.ops.VerifyMFA(ctx, stringField(payload, "code")))
	case opBiometric:
		return x.boolOp(x.ops.AuthenticateBiometric(ctx))
	case opSecurityConfig:
		config, _ := payload["config"].(map[string]any)
		if config == nil {
			config = map[string]any(payload)
		}
		return x.boolOp(x.ops.SubmitSecurityConfig(ctx, config))
	case opSocialLogin:
		user, err := x.ops.SocialLogin(ctx, stringField(payload, "provider"))
		if err != nil {
			return nil, err
		}
		return userPayload(user), nil
	case opRegistration:
		user, err := x.ops.SubmitRegistration(ctx, map[string]any(payload))
		if err != nil {
			return nil, err
		}
		return userPayload(user), nil
	case opRecoveryRequest:
		return x.boolOp(x.ops.RequestAccountRecovery(ctx, stringField(payload, "email")))
	case opVerifyEmail:
		return x.boolOp(x.ops.VerifyEmail(ctx, stringField(payload, "code")))
	case opChangePassword:
		return x.boolOp(x.ops.ChangePassword(ctx,
			stringField(payload, "current_password"),
			stringField(payload, "new_password")))
	default:
		return nil, fmt.Errorf("%w: operation %d", ErrStepNotExecutable, op)
	}
}

func (x *stepExecutor) boolOp(ok bool, err error) (Payload, error) {
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOperationRejected
	}
	return Payload{"verified": true}, nil
}

func userPayload(user *UserResult) Payload {
	if user == nil {
		return nil
	}
	p := Payload{
		"user_id": user.UserID,
		"email":   user.Email,
	}
	if user.DisplayName != "" {
		p["display_name"] = user.DisplayName
	}
	if user.AccessToken != "" {
		p["access_token"] = user.AccessToken
	}
	if user.RefreshToken != "" {
		p["refresh_token"] = user.RefreshToken
	}
	return p
}

func stringField(p Payload, key string) string {
	v, _ := p[key].(string)
	return v
}
