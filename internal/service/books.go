package service

import (
	"context"
	"io"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eshelf/loan-portal/internal/model"
	"github.com/eshelf/loan-portal/internal/repository"
)

// FileStore is the blob storage uploads go to.
type FileStore interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

type BookService struct {
	repo  repository.Repository
	store FileStore
	log   *zap.Logger
}

func NewBookService(repo repository.Repository, store FileStore, log *zap.Logger) *BookService {
	return &BookService{
		repo:  repo,
		store: store,
		log:   log.Named("books"),
	}
}

// Upload stores the blob before the row; a failed insert leaves an orphan
// object behind.
func (s *BookService) Upload(ctx context.Context, req model.UploadBookRequest, file io.Reader, size int64) (model.Book, error) {
	objectName := uuid.NewString() + path.Ext(req.Filename)
	fileURL, err := s.store.Put(ctx, objectName, file, size, "application/pdf")
	if err != nil {
		return model.Book{}, err
	}

	book, err := s.repo.CreateBook(ctx, model.Book{
		Title:        req.Title,
		Synopsis:     req.Synopsis,
		ThumbnailURL: req.ThumbnailURL,
		FileURL:      fileURL,
	})
	if err != nil {
		return model.Book{}, err
	}
	s.log.Info("book uploaded", zap.Int("id", book.ID), zap.String("title", book.Title))
	return book, nil
}

func (s *BookService) List(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}
