package service

import (
	"context"
	"testing"
	"time"

	"describly/internal/entity"
	"describly/internal/repository"
	"describly/internal/testutil"
)

func TestVerificationLedgerIssueAndConsume(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	clock := newFakeClock()
	user := &entity.User{FullName: "Ledger", Email: "ledger@x.com"}
	if err := repository.NewUserRepository(db).Create(ctx, user); err != nil {
		t.Fatal(err)
	}
	ledger := NewVerificationLedger(repository.NewVerificationCodeRepository(db), "pepper", clock)

	code, err := ledger.Issue(ctx, user.ID, entity.AccountVerification, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 5 {
		t.Fatalf("expected a 5 digit code, got %q", code)
	}

	ok, err := ledger.Consume(ctx, user.ID, code, entity.PasswordReset)
	if err != nil || ok {
		t.Fatalf("expected other purpose to miss, got %v %v", ok, err)
	}
	ok, err = ledger.Consume(ctx, user.ID+1, code, entity.AccountVerification)
	if err != nil || ok {
		t.Fatalf("expected other user to miss, got %v %v", ok, err)
	}
	ok, err = ledger.Consume(ctx, user.ID, code, entity.AccountVerification)
	if err != nil || !ok {
		t.Fatalf("expected consume to succeed, got %v %v", ok, err)
	}
	ok, err = ledger.Consume(ctx, user.ID, code, entity.AccountVerification)
	if err != nil || ok {
		t.Fatalf("expected second consume to fail, got %v %v", ok, err)
	}
}

func TestVerificationLedgerPepperMatters(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	clock := newFakeClock()
	user := &entity.User{FullName: "Ledger", Email: "pepper@x.com"}
	if err := repository.NewUserRepository(db).Create(ctx, user); err != nil {
		t.Fatal(err)
	}
	codes := repository.NewVerificationCodeRepository(db)

	code, err := NewVerificationLedger(codes, "one", clock).Issue(ctx, user.ID, entity.PasswordReset, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := NewVerificationLedger(codes, "two", clock).Consume(ctx, user.ID, code, entity.PasswordReset)
	if err != nil || ok {
		t.Fatalf("expected a different pepper to miss, got %v %v", ok, err)
	}
}
