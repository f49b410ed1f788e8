package model

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRenewed  Status = "renewed"
	StatusExpired  Status = "expired"
)

type Book struct {
	ID           int       `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Synopsis     string    `json:"synopsis" db:"synopsis"`
	ThumbnailURL string    `json:"thumbnail_url" db:"thumbnail_url"`
	FileURL      string    `json:"file_url" db:"file_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type LoanRequest struct {
	ID           int            `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Email        string         `json:"email" db:"email"`
	Class        string         `json:"class" db:"class"`
	BookID       int            `json:"book_id" db:"book_id"`
	DurationDays int            `json:"duration_days" db:"duration_days"`
	Status       Status         `json:"status" db:"status"`
	AccessToken  sql.NullString `json:"-" db:"access_token"`
	AccessCode   sql.NullString `json:"-" db:"access_code"`
	ExpiresAt    sql.NullTime   `json:"-" db:"expires_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	ApprovedAt   sql.NullTime   `json:"-" db:"approved_at"`
	RenewedAt    sql.NullTime   `json:"-" db:"renewed_at"`
}

// LoanSummary is a loan joined with its book for listing endpoints.
type LoanSummary struct {
	ID            int          `json:"id" db:"id"`
	Name          string       `json:"name" db:"name"`
	Email         string       `json:"email" db:"email"`
	Class         string       `json:"class" db:"class"`
	BookID        int          `json:"book_id" db:"book_id"`
	BookTitle     string       `json:"book_title" db:"book_title"`
	BookThumbnail string       `json:"book_thumbnail" db:"book_thumbnail"`
	DurationDays  int          `json:"duration_days" db:"duration_days"`
	Status        Status       `json:"status" db:"status"`
	ExpiresAt     sql.NullTime `json:"-" db:"expires_at"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

type UploadBookRequest struct {
	Title        string `validate:"required"`
	Synopsis     string
	ThumbnailURL string
	Filename     string `validate:"required"`
}

type CreateLoanRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Class        string `json:"class"`
	BookID       int    `json:"book_id" validate:"required"`
	DurationDays int    `json:"duration_days" validate:"omitempty,min=1,max=90"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RedeemRequest struct {
	AccessCode string `json:"access_code" validate:"required"`
}

type ReadTokenResponse struct {
	Token string `json:"token"`
}

type ReadBookResponse struct {
	Title   string `json:"title"`
	FileURL string `json:"file_url"`
}

// ApprovalStamp carries everything a loan approval writes besides the status.
type ApprovalStamp struct {
	Token      string
	Code       string
	ExpiresAt  time.Time
	ApprovedAt time.Time
}

// LoanApprovedEvent is published after the approval transaction commits and
// consumed by the mail dispatcher.
type LoanApprovedEvent struct {
	LoanID    int       `json:"loanId"`
	Email     string    `json:"email"`
	BookTitle string    `json:"bookTitle"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}
