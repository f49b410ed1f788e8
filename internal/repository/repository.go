package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eshelf/loan-portal/internal/errs"
	"github.com/eshelf/loan-portal/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id int) (model.Book, error)

	CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.LoanRequest, error)
	ListLoans(ctx context.Context) ([]model.LoanSummary, error)
	ListLoansByEmail(ctx context.Context, email string) ([]model.LoanSummary, error)
	GetLoan(ctx context.Context, id int) (model.LoanRequest, error)
	GetLoanByCode(ctx context.Context, code string) (model.LoanRequest, error)
	ApproveLoan(ctx context.Context, id int, stamp model.ApprovalStamp) (model.LoanRequest, error)
	RejectLoan(ctx context.Context, id int) error
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName = `books`
	loansTableName = `loan_requests`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	q, args, err := qb.Insert(booksTableName).
		Columns("title", "synopsis", "thumbnail_url", "file_url").
		Values(book.Title, book.Synopsis, book.ThumbnailURL, book.FileURL).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var res model.Book
	if err := r.db.GetContext(ctx, &res, q, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args))
		return model.Book{}, err
	}
	return res, nil
}

func (r *repository) ListBooks(ctx context.Context) ([]model.Book, error) {
	q, args, err := qb.Select("id", "title", "synopsis", "thumbnail_url", "file_url", "created_at").
		From(booksTableName).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	items := make([]model.Book, 0)
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) GetBook(ctx context.Context, id int) (model.Book, error) {
	q, args, err := qb.Select("id", "title", "synopsis", "thumbnail_url", "file_url", "created_at").
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.LoanRequest, error) {
	q, args, err := qb.Insert(loansTableName).
		Columns("name", "email", "class", "book_id", "duration_days", "status").
		Values(req.Name, req.Email, req.Class, req.BookID, req.DurationDays, model.StatusPending).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.LoanRequest{}, err
	}
	var loan model.LoanRequest
	if err := r.db.GetContext(ctx, &loan, q, args...); err != nil {
		r.log.Error("CreateLoan", zap.String("q", q), zap.Any("args", args))
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return model.LoanRequest{}, errs.ErrNotFound
		}
		return model.LoanRequest{}, err
	}
	return loan, nil
}

const loanSummaryColumns = `l.id, l.name, l.email, l.class, l.book_id,
	b.title as book_title, b.thumbnail_url as book_thumbnail,
	l.duration_days, l.status, l.expires_at, l.created_at`

func (r *repository) ListLoans(ctx context.Context) ([]model.LoanSummary, error) {
	q := fmt.Sprintf(`select %s from %s l join %s b on b.id = l.book_id order by l.created_at desc`,
		loanSummaryColumns, loansTableName, booksTableName)
	items := make([]model.LoanSummary, 0)
	if err := r.db.SelectContext(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListLoansByEmail(ctx context.Context, email string) ([]model.LoanSummary, error) {
	q := fmt.Sprintf(`select %s from %s l join %s b on b.id = l.book_id where l.email = $1 order by l.created_at desc`,
		loanSummaryColumns, loansTableName, booksTableName)
	items := make([]model.LoanSummary, 0)
	if err := r.db.SelectContext(ctx, &items, q, email); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) GetLoan(ctx context.Context, id int) (model.LoanRequest, error) {
	q, args, err := qb.Select("*").
		From(loansTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.LoanRequest{}, err
	}
	var loan model.LoanRequest
	if err := r.db.GetContext(ctx, &loan, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LoanRequest{}, errs.ErrNotFound
		}
		return model.LoanRequest{}, err
	}
	return loan, nil
}

func (r *repository) GetLoanByCode(ctx context.Context, code string) (model.LoanRequest, error) {
	q, args, err := qb.Select("*").
		From(loansTableName).
		Where(sq.Eq{"access_code": code}).
		Where(sq.Eq{"status": model.StatusApproved}).
		ToSql()
	if err != nil {
		return model.LoanRequest{}, err
	}
	var loan model.LoanRequest
	if err := r.db.GetContext(ctx, &loan, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LoanRequest{}, errs.ErrNotFound
		}
		return model.LoanRequest{}, err
	}
	return loan, nil
}

// ApproveLoan flips a pending loan to approved and stamps token, code and
// expiry in one transaction. The update is guarded by status = 'pending', so
// a concurrent approval of the same loan gets ErrNotFound. A duplicate access
// code surfaces as ErrCodeTaken and leaves the loan pending.
func (r *repository) ApproveLoan(ctx context.Context, id int, stamp model.ApprovalStamp) (model.LoanRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.LoanRequest{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	q, args, err := qb.Update(loansTableName).
		Set("status", model.StatusApproved).
		Set("access_token", stamp.Token).
		Set("access_code", stamp.Code).
		Set("expires_at", stamp.ExpiresAt).
		Set("approved_at", stamp.ApprovedAt).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": model.StatusPending}).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.LoanRequest{}, err
	}

	var loan model.LoanRequest
	if err := tx.GetContext(ctx, &loan, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LoanRequest{}, errs.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return model.LoanRequest{}, errs.ErrCodeTaken
		}
		r.log.Error("ApproveLoan", zap.Int("id", id), zap.Error(err))
		return model.LoanRequest{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.LoanRequest{}, errors.Wrap(err, "commit")
	}
	return loan, nil
}

func (r *repository) RejectLoan(ctx context.Context, id int) error {
	q, args, err := qb.Update(loansTableName).
		Set("status", model.StatusRejected).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": model.StatusPending}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
