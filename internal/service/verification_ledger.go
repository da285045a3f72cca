package service

import (
	"context"
	"fmt"
	"time"

	"describly/internal/entity"
	"describly/internal/repository"
	"describly/internal/utils"
)

// VerificationLedger issues and consumes single use, purpose scoped codes.
// Only a keyed digest of each code is persisted.
type VerificationLedger struct {
	codes    repository.VerificationCodeRepository
	pepper   string
	clock    Clock
	generate func(length int) (string, error)
}

func NewVerificationLedger(codes repository.VerificationCodeRepository, pepper string, clock Clock) *VerificationLedger {
	if clock == nil {
		clock = RealClock{}
	}
	return &VerificationLedger{
		codes:    codes,
		pepper:   pepper,
		clock:    clock,
		generate: utils.GenerateVerificationCode,
	}
}

// Issue stores a new unused code and returns its plaintext. Earlier codes
// for the same purpose stay valid until they expire or are used.
func (l *VerificationLedger) Issue(ctx context.Context, userID uint, purpose entity.VerificationPurpose, ttl time.Duration) (string, error) {
	code, err := l.generate(utils.DefaultVerificationCodeLength)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	now := l.clock.Now()
	row := &entity.VerificationCode{
		UserID:    userID,
		CodeHash:  utils.HashToken(code, l.pepper),
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := l.codes.Create(ctx, row); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return code, nil
}

// Consume marks the earliest matching valid code as used. It reports false
// when no code matches or a concurrent consumer won the row.
func (l *VerificationLedger) Consume(ctx context.Context, userID uint, code string, purpose entity.VerificationPurpose) (bool, error) {
	if code == "" {
		return false, nil
	}
	now := l.clock.Now()
	row, err := l.codes.FindValid(ctx, userID, utils.HashToken(code, l.pepper), purpose, now)
	if err != nil {
		return false, fmt.Errorf("find verification code: %w", err)
	}
	if row == nil {
		return false, nil
	}
	ok, err := l.codes.MarkUsed(ctx, row.ID, now)
	if err != nil {
		return false, fmt.Errorf("mark verification code used: %w", err)
	}
	return ok, nil
}
