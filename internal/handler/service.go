package handler

import (
	"context"
	"io"
	"time"

	"github.com/eshelf/loan-portal/internal/model"
	"github.com/eshelf/loan-portal/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type BookService interface {
	Upload(ctx context.Context, req model.UploadBookRequest, file io.Reader, size int64) (model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
}

type LoanService interface {
	Create(ctx context.Context, req model.CreateLoanRequest) (model.LoanRequest, error)
	List(ctx context.Context) ([]model.LoanSummary, error)
	ListByEmail(ctx context.Context, email string) ([]model.LoanSummary, error)
	Approve(ctx context.Context, id int) (model.LoanRequest, error)
	Reject(ctx context.Context, id int) error
	Redeem(ctx context.Context, code string) (string, error)
	VerifyRead(ctx context.Context, token string) (model.ReadBookResponse, error)
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

var (
	_ BookService = (*service.BookService)(nil)
	_ LoanService = (*service.LoanService)(nil)
	_ AuthService = (*service.AuthService)(nil)
)
