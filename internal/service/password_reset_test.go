package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"describly/internal/entity"
	"describly/internal/repository"
)

const newPassword = "N3w!Passw0rd"

func resetInput(email string, code string) ResetPasswordInput {
	return ResetPasswordInput{Email: email, Code: code, NewPassword: newPassword, ConfirmPassword: newPassword}
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerActive(t, "reset@x.com")

	if err := h.svc.RequestPasswordReset(ctx, "reset@x.com", nil); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	email := h.emails.last(t)
	if email.templateKey != TemplatePasswordReset {
		t.Fatalf("expected password reset email, got %s", email.templateKey)
	}
	code := email.data["verification_code"].(string)

	var row entity.VerificationCode
	if err := h.db.Where("purpose = ?", entity.PasswordReset).First(&row).Error; err != nil {
		t.Fatal(err)
	}
	if !row.ExpiresAt.Equal(h.clock.Now().Add(90 * time.Minute)) {
		t.Fatalf("expected 90 minute ttl, got %v", row.ExpiresAt)
	}

	if err := h.svc.ResetPassword(ctx, resetInput("reset@x.com", code)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := h.svc.ResetPassword(ctx, resetInput("reset@x.com", code)); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expected used code to fail, got %v", err)
	}

	if _, err := h.svc.Login(ctx, LoginInput{Identifier: "reset@x.com", Password: strongPassword}); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
	h.login(t, "reset@x.com", newPassword)
}

func TestRequestPasswordResetIsEnumerationSafe(t *testing.T) {
	h := newHarness(t)
	if err := h.svc.RequestPasswordReset(context.Background(), "nobody@x.com", nil); err != nil {
		t.Fatalf("expected nil for unknown email, got %v", err)
	}
	if len(h.emails.all()) != 0 {
		t.Fatal("expected no email for unknown address")
	}
	if err := h.svc.RequestPasswordReset(context.Background(), "", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank email, got %v", err)
	}
}

func TestRequestPasswordResetSwallowsDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.registerActive(t, "flaky@x.com")
	h.emails.err = errors.New("smtp down")

	if err := h.svc.RequestPasswordReset(context.Background(), "flaky@x.com", nil); err != nil {
		t.Fatalf("expected delivery failure to be hidden, got %v", err)
	}
}

func TestResetPasswordValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerActive(t, "valid@x.com")

	mismatch := resetInput("valid@x.com", "12345")
	mismatch.ConfirmPassword = "Different!1"
	if err := h.svc.ResetPassword(ctx, mismatch); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := h.svc.ResetPassword(ctx, resetInput("ghost@x.com", "12345")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	weak := ResetPasswordInput{Email: "valid@x.com", Code: "12345", NewPassword: "weakpass", ConfirmPassword: "weakpass"}
	if err := h.svc.ResetPassword(ctx, weak); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := h.svc.ResetPassword(ctx, resetInput("valid@x.com", "00000")); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expected ErrInvalidOrExpiredCode, got %v", err)
	}
}

func TestCodesArePurposeScoped(t *testing.T) {
	h := newHarness(t)
	h.fixCodes("12345", "12345")
	ctx := context.Background()

	h.register(t, "purpose@x.com")
	// The account_verification code must not reset the password.
	if err := h.svc.ResetPassword(ctx, resetInput("purpose@x.com", "12345")); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expected verification code to be rejected for reset, got %v", err)
	}

	if _, err := h.svc.Activate(ctx, ActivateInput{Email: "purpose@x.com", Code: "12345"}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := h.svc.RequestPasswordReset(ctx, "purpose@x.com", nil); err != nil {
		t.Fatal(err)
	}
	// The password_reset code must not activate.
	if _, err := h.svc.Activate(ctx, ActivateInput{Email: "purpose@x.com", Code: "12345"}); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expected reset code to be rejected for activation, got %v", err)
	}
	if err := h.svc.ResetPassword(ctx, resetInput("purpose@x.com", "12345")); err != nil {
		t.Fatalf("expected reset code to still be valid, got %v", err)
	}
}

func TestResetCodeExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerActive(t, "expire@x.com")
	if err := h.svc.RequestPasswordReset(ctx, "expire@x.com", nil); err != nil {
		t.Fatal(err)
	}
	code := h.emails.last(t).data["verification_code"].(string)

	h.clock.Advance(91 * time.Minute)
	if err := h.svc.ResetPassword(ctx, resetInput("expire@x.com", code)); !errors.Is(err, ErrInvalidOrExpiredCode) {
		t.Fatalf("expected expired code to fail, got %v", err)
	}
}

func TestConcurrentResetConsumesCodeOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.registerActive(t, "concurrent@x.com")
	if err := h.svc.RequestPasswordReset(ctx, "concurrent@x.com", nil); err != nil {
		t.Fatal(err)
	}
	code := h.emails.last(t).data["verification_code"].(string)

	const workers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.svc.ResetPassword(ctx, resetInput("concurrent@x.com", code))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInvalidOrExpiredCode) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one successful reset, got %d", successes)
	}
}

// staleEmailLookup runs afterLookup once, after FindByEmail has read the row
// and before the caller acts on it.
type staleEmailLookup struct {
	repository.UserRepository
	afterLookup func()
}

func (u *staleEmailLookup) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := u.UserRepository.FindByEmail(ctx, email)
	if hook := u.afterLookup; hook != nil {
		u.afterLookup = nil
		hook()
	}
	return user, err
}

func TestResetPasswordKeepsConcurrentActivation(t *testing.T) {
	h := newHarness(t)
	h.fixCodes("11111", "22222")
	ctx := context.Background()

	h.register(t, "race@x.com")
	if err := h.svc.RequestPasswordReset(ctx, "race@x.com", nil); err != nil {
		t.Fatal(err)
	}

	h.svc.users = &staleEmailLookup{
		UserRepository: h.users,
		afterLookup: func() {
			if _, err := h.svc.Activate(ctx, ActivateInput{Email: "race@x.com", Code: "11111"}); err != nil {
				t.Errorf("activate: %v", err)
			}
		},
	}
	if err := h.svc.ResetPassword(ctx, resetInput("race@x.com", "22222")); err != nil {
		t.Fatalf("reset: %v", err)
	}

	user, err := h.users.FindByEmail(ctx, "race@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if !user.IsActive || user.VerifiedAt == nil || user.LoggedInAt == nil {
		t.Fatalf("expected activation to survive the reset, got %+v", user)
	}
	h.login(t, "race@x.com", newPassword)
}
