package authflow

import (
	"context"
	"errors"
)

// stubOps is the test backend. Unset hooks resolve successfully with fixed
// values; tests override only the hooks they exercise.
type stubOps struct {
	submitCredentials func(ctx context.Context, email, password string) (*UserResult, error)
	verifyMFA         func(ctx context.Context, code string) (bool, error)
	biometric         func(ctx context.Context) (bool, error)
	securityConfig    func(ctx context.Context, config map[string]any) (bool, error)
	socialLogin       func(ctx context.Context, provider string) (*UserResult, error)
	registration      func(ctx context.Context, profile map[string]any) (*UserResult, error)
	recovery          func(ctx context.Context, email string) (bool, error)
	verifyEmail       func(ctx context.Context, code string) (bool, error)
	changePassword    func(ctx context.Context, currentPassword, newPassword string) (bool, error)
}

func stubUser(email string) *UserResult {
	return &UserResult{
		UserID:      "u-1",
		Email:       email,
		AccessToken: "token-1",
	}
}

func (s *stubOps) SubmitCredentials(ctx context.Context, email, password string) (*UserResult, error) {
	if s.submitCredentials != nil {
		return s.submitCredentials(ctx, email, password)
	}
	if email == "" {
		return nil, errors.New("email required")
	}
	return stubUser(email), nil
}

func (s *stubOps) VerifyMFA(ctx context.Context, code string) (bool, error) {
	if s.verifyMFA != nil {
		return s.verifyMFA(ctx, code)
	}
	return true, nil
}

func (s *stubOps) AuthenticateBiometric(ctx context.Context) (bool, error) {
	if s.biometric != nil {
		return s.biometric(ctx)
	}
	return true, nil
}

func (s *stubOps) SubmitSecurityConfig(ctx context.Context, config map[string]any) (bool, error) {
	if s.securityConfig != nil {
		return s.securityConfig(ctx, config)
	}
	return true, nil
}

func (s *stubOps) SocialLogin(ctx context.Context, provider string) (*UserResult, error) {
	if s.socialLogin != nil {
		return s.socialLogin(ctx, provider)
	}
	return stubUser(provider + "@example.com"), nil
}

func (s *stubOps) SubmitRegistration(ctx context.Context, profile map[string]any) (*UserResult, error) {
	if s.registration != nil {
		return s.registration(ctx, profile)
	}
	email, _ := profile["email"].(string)
	return stubUser(email), nil
}

func (s *stubOps) RequestAccountRecovery(ctx context.Context, email string) (bool, error) {
	if s.recovery != nil {
		return s.recovery(ctx, email)
	}
	return true, nil
}

func (s *stubOps) VerifyEmail(ctx context.Context, code string) (bool, error) {
	if s.verifyEmail != nil {
		return s.verifyEmail(ctx, code)
	}
	return true, nil
}

func (s *stubOps) ChangePassword(ctx context.Context, currentPassword, newPassword string) (bool, error) {
	if s.changePassword != nil {
		return s.changePassword(ctx, currentPassword, newPassword)
	}
	return true, nil
}
