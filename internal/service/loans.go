package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eshelf/loan-portal/internal/errs"
	"github.com/eshelf/loan-portal/internal/model"
	"github.com/eshelf/loan-portal/internal/repository"
	"github.com/eshelf/loan-portal/pkg/auth"
	"github.com/eshelf/loan-portal/pkg/kafka"
)

const (
	defaultDurationDays = 3
	codeAttempts        = 5
)

type LoanService struct {
	repo   repository.Repository
	tokens *auth.Manager
	queue  Enqueuer
	log    *zap.Logger
}

func NewLoanService(repo repository.Repository, tokens *auth.Manager, queue Enqueuer, log *zap.Logger) *LoanService {
	return &LoanService{
		repo:   repo,
		tokens: tokens,
		queue:  queue,
		log:    log.Named("loans"),
	}
}

func (s *LoanService) Create(ctx context.Context, req model.CreateLoanRequest) (model.LoanRequest, error) {
	if req.DurationDays == 0 {
		req.DurationDays = defaultDurationDays
	}
	return s.repo.CreateLoan(ctx, req)
}

func (s *LoanService) List(ctx context.Context) ([]model.LoanSummary, error) {
	return s.repo.ListLoans(ctx)
}

func (s *LoanService) ListByEmail(ctx context.Context, email string) ([]model.LoanSummary, error) {
	return s.repo.ListLoansByEmail(ctx, email)
}

// Approve flips a pending loan to approved, minting the read token and an
// access code, then publishes the notification event. The event is published
// only after the transaction commits; a publish failure is returned even
// though the approval is already persisted.
func (s *LoanService) Approve(ctx context.Context, id int) (model.LoanRequest, error) {
	loan, err := s.repo.GetLoan(ctx, id)
	if err != nil {
		return model.LoanRequest{}, err
	}
	if loan.Status != model.StatusPending {
		return model.LoanRequest{}, errs.ErrNotFound
	}
	book, err := s.repo.GetBook(ctx, loan.BookID)
	if err != nil {
		return model.LoanRequest{}, err
	}

	approvedAt := time.Now()
	expiresAt := approvedAt.Add(time.Duration(loan.DurationDays) * 24 * time.Hour)
	token, err := s.tokens.MintReadToken(loan.ID, loan.BookID, loan.Email, expiresAt)
	if err != nil {
		return model.LoanRequest{}, errors.Wrap(err, "mint read token")
	}

	var approved model.LoanRequest
	for attempt := 0; ; attempt++ {
		code, err := NewAccessCode()
		if err != nil {
			return model.LoanRequest{}, errors.Wrap(err, "access code")
		}
		approved, err = s.repo.ApproveLoan(ctx, id, model.ApprovalStamp{
			Token:      token,
			Code:       code,
			ExpiresAt:  expiresAt,
			ApprovedAt: approvedAt,
		})
		if errors.Is(err, errs.ErrCodeTaken) && attempt+1 < codeAttempts {
			s.log.Warn("access code collision", zap.Int("loan", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return model.LoanRequest{}, err
		}
		break
	}

	event := model.LoanApprovedEvent{
		LoanID:    approved.ID,
		Email:     approved.Email,
		BookTitle: book.Title,
		Code:      approved.AccessCode.String,
		ExpiresAt: expiresAt,
	}
	if err := s.queue.Enqueue(kafka.NotificationsTopic, event); err != nil {
		// The approval is already committed; the caller still sees an error.
		s.log.Error("enqueue approval notification", zap.Int("loan", id), zap.Error(err))
		return model.LoanRequest{}, errors.Wrap(err, "notify")
	}

	s.log.Info("loan approved", zap.Int("loan", approved.ID), zap.Time("expires", expiresAt))
	return approved, nil
}

func (s *LoanService) Reject(ctx context.Context, id int) error {
	return s.repo.RejectLoan(ctx, id)
}

// Redeem exchanges an access code for the stored read token. An expired code
// stays in storage and keeps failing with ErrExpired.
func (s *LoanService) Redeem(ctx context.Context, code string) (string, error) {
	loan, err := s.repo.GetLoanByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if loan.ExpiresAt.Valid && loan.ExpiresAt.Time.Before(time.Now()) {
		return "", errs.ErrExpired
	}
	return loan.AccessToken.String, nil
}

// VerifyRead validates a read token and resolves it to the book it unlocks.
// The loan is re-fetched so a loan that left the approved state invalidates
// outstanding tokens.
func (s *LoanService) VerifyRead(ctx context.Context, token string) (model.ReadBookResponse, error) {
	claims, err := s.tokens.ParseReadToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return model.ReadBookResponse{}, errs.ErrSessionExpired
		}
		return model.ReadBookResponse{}, errs.ErrForbidden
	}

	loan, err := s.repo.GetLoan(ctx, claims.LoanID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.ReadBookResponse{}, errs.ErrForbidden
		}
		return model.ReadBookResponse{}, err
	}
	if loan.Status != model.StatusApproved {
		return model.ReadBookResponse{}, errs.ErrForbidden
	}

	book, err := s.repo.GetBook(ctx, loan.BookID)
	if err != nil {
		return model.ReadBookResponse{}, err
	}
	return model.ReadBookResponse{
		Title:   book.Title,
		FileURL: book.FileURL,
	}, nil
}
