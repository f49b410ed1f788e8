package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eshelf/loan-portal/internal/errs"
	"github.com/eshelf/loan-portal/internal/handler"
	service_mocks "github.com/eshelf/loan-portal/internal/handler/mocks"
	"github.com/eshelf/loan-portal/internal/model"
	"github.com/eshelf/loan-portal/pkg/auth"
	"github.com/eshelf/loan-portal/pkg/validate"
)

func newTestEcho(t *testing.T) (*echo.Echo, *service_mocks.MockBookService, *service_mocks.MockLoanService, *service_mocks.MockAuthService) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)

	books := service_mocks.NewMockBookService(c)
	loans := service_mocks.NewMockLoanService(c)
	authSvc := service_mocks.NewMockAuthService(c)
	log := zap.NewExample().Named("test")
	h := handler.New(books, loans, authSvc, auth.NewManager("test-secret"), log)

	e := echo.New()
	e.Validator = validate.NewCustomValidator()
	e.POST("/api/loan-request", h.CreateLoanRequest)
	e.POST("/api/get-read-token", h.GetReadToken)
	e.GET("/api/read-book", h.ReadBook)
	e.POST("/api/approve-loan/:id", h.ApproveLoan)
	e.GET("/api/my-books", h.MyBooks)
	e.POST("/api/upload", h.UploadBook)
	e.POST("/api/login", h.Login)

	return e, books, loans, authSvc
}

func TestHandler_UploadBook(t *testing.T) {
	t.Parallel()

	t.Run("err. title required", func(t *testing.T) {
		t.Parallel()
		e, _, _, _ := newTestEcho(t)

		r := httptest.NewRequest(http.MethodPost, "/api/upload?filename=abai.pdf", strings.NewReader("%PDF-1.7"))
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("err. file required", func(t *testing.T) {
		t.Parallel()
		e, _, _, _ := newTestEcho(t)

		r := httptest.NewRequest(http.MethodPost, "/api/upload?title=Abai+Joly&filename=abai.pdf", http.NoBody)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, `{"message":"file is required"}`, strings.Trim(w.Body.String(), "\n"))
	})

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		e, books, _, _ := newTestEcho(t)
		books.EXPECT().
			Upload(context.Background(), model.UploadBookRequest{
				Title:    "Abai Joly",
				Filename: "abai.pdf",
			}, gomock.Any(), int64(8)).
			Return(model.Book{
				ID:      1,
				Title:   "Abai Joly",
				FileURL: "http://storage/books/abai.pdf",
			}, nil)

		r := httptest.NewRequest(http.MethodPost, "/api/upload?title=Abai+Joly&filename=abai.pdf", strings.NewReader("%PDF-1.7"))
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("ok chunked body without content length", func(t *testing.T) {
		t.Parallel()
		e, books, _, _ := newTestEcho(t)
		books.EXPECT().
			Upload(context.Background(), model.UploadBookRequest{
				Title:    "Abai Joly",
				Filename: "abai.pdf",
			}, gomock.Any(), int64(-1)).
			Return(model.Book{
				ID:      1,
				Title:   "Abai Joly",
				FileURL: "http://storage/books/abai.pdf",
			}, nil)

		r := httptest.NewRequest(http.MethodPost, "/api/upload?title=Abai+Joly&filename=abai.pdf", strings.NewReader("%PDF-1.7"))
		r.ContentLength = -1
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestHandler_Login(t *testing.T) {
	t.Parallel()

	t.Run("ok sets session cookie", func(t *testing.T) {
		t.Parallel()
		e, _, _, authSvc := newTestEcho(t)
		authSvc.EXPECT().
			Login(context.Background(), "admin", "s3cret").
			Return("admin-token", time.Now().Add(72*time.Hour), nil)

		r := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"admin","password":"s3cret"}`))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, "admin_session", cookies[0].Name)
		require.Equal(t, "admin-token", cookies[0].Value)
		require.True(t, cookies[0].HttpOnly)
	})

	t.Run("err. bad credentials", func(t *testing.T) {
		t.Parallel()
		e, _, _, authSvc := newTestEcho(t)
		authSvc.EXPECT().
			Login(context.Background(), "admin", "wrong").
			Return("", time.Time{}, errs.ErrBadCredentials)

		r := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"admin","password":"wrong"}`))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandler_CreateLoanRequest(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLoanService)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"name":"Aibek","email":"aibek@example.com","book_id":2}`,
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					Create(context.Background(), model.CreateLoanRequest{
						Name:   "Aibek",
						Email:  "aibek@example.com",
						BookID: 2,
					}).
					Return(model.LoanRequest{
						ID:           1,
						Name:         "Aibek",
						Email:        "aibek@example.com",
						BookID:       2,
						DurationDays: 3,
						Status:       model.StatusPending,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"id":1,"name":"Aibek","email":"aibek@example.com","class":"","book_id":2,"duration_days":3,"status":"pending","created_at":"0001-01-01T00:00:00Z"}`,
			},
		},
		{
			name:         "err. email required",
			body:         `{"name":"Aibek","book_id":2}`,
			mockBehavior: func(r *service_mocks.MockLoanService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
		},
		{
			name: "err. unknown book",
			body: `{"name":"Aibek","email":"aibek@example.com","book_id":99}`,
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					Create(context.Background(), gomock.Any()).
					Return(model.LoanRequest{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book not found"}`,
			},
		},
		{
			name: "err. internal",
			body: `{"name":"Aibek","email":"aibek@example.com","book_id":2}`,
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					Create(context.Background(), gomock.Any()).
					Return(model.LoanRequest{}, errors.New("db internal"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"db internal"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _, loans, _ := newTestEcho(t)
			tt.mockBehavior(loans)

			r := httptest.NewRequest(http.MethodPost, "/api/loan-request", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_GetReadToken(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLoanService)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"access_code":"9F2C11AB"}`,
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					Redeem(context.Background(), "9F2C11AB").
					Return("signed-token", nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"token":"signed-token"}`,
			},
		},
		{
			name:         "err. code required",
			body:         `{}`,
			mockBehavior: func(r *service_mocks.MockLoanService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
		},
		{
			name: "err. unknown code",
			body: `{"access_code":"00000000"}`,
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					Redeem(context.Background(), "00000000").
					Return("", errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"not found"}`,
			},
		},
		{
			name: "err. expired code",
			body: `{"access_code":"9F2C11AB"}`,
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					Redeem(context.Background(), "9F2C11AB").
					Return("", errs.ErrExpired)
			},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"access code is expired"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _, loans, _ := newTestEcho(t)
			tt.mockBehavior(loans)

			r := httptest.NewRequest(http.MethodPost, "/api/get-read-token", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_ReadBook(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLoanService)

	var tests = []struct {
		name         string
		token        string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:  "ok",
			token: "valid-token",
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					VerifyRead(context.Background(), "valid-token").
					Return(model.ReadBookResponse{
						Title:   "Abai Joly",
						FileURL: "http://storage/books/abai.pdf",
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"title":"Abai Joly","file_url":"http://storage/books/abai.pdf"}`,
			},
		},
		{
			name:         "err. no token",
			token:        "",
			mockBehavior: func(r *service_mocks.MockLoanService) {},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"message":"forbidden"}`,
			},
		},
		{
			name:  "err. session expired",
			token: "old-token",
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					VerifyRead(context.Background(), "old-token").
					Return(model.ReadBookResponse{}, errs.ErrSessionExpired)
			},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"reading session is expired"}`,
			},
		},
		{
			name:  "err. loan no longer approved",
			token: "revoked-token",
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					VerifyRead(context.Background(), "revoked-token").
					Return(model.ReadBookResponse{}, errs.ErrForbidden)
			},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"message":"forbidden"}`,
			},
		},
		{
			name:  "err. book gone",
			token: "valid-token",
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					VerifyRead(context.Background(), "valid-token").
					Return(model.ReadBookResponse{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _, loans, _ := newTestEcho(t)
			tt.mockBehavior(loans)

			r := httptest.NewRequest(http.MethodGet, "/api/read-book?token="+tt.token, http.NoBody)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ApproveLoan(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLoanService)

	var tests = []struct {
		name         string
		id           string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			id:   "7",
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					Approve(context.Background(), 7).
					Return(model.LoanRequest{
						ID:           7,
						Name:         "Aibek",
						Email:        "aibek@example.com",
						BookID:       2,
						DurationDays: 3,
						Status:       model.StatusApproved,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"id":7,"name":"Aibek","email":"aibek@example.com","class":"","book_id":2,"duration_days":3,"status":"approved","created_at":"0001-01-01T00:00:00Z"}`,
			},
		},
		{
			name: "err. unknown loan",
			id:   "99",
			mockBehavior: func(r *service_mocks.MockLoanService) {
				r.EXPECT().
					Approve(context.Background(), 99).
					Return(model.LoanRequest{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"not found"}`,
			},
		},
		{
			name:         "err. invalid id",
			id:           "abc",
			mockBehavior: func(r *service_mocks.MockLoanService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"id is invalid"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _, loans, _ := newTestEcho(t)
			tt.mockBehavior(loans)

			r := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/approve-loan/%s", tt.id), http.NoBody)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_MyBooks(t *testing.T) {
	t.Parallel()

	t.Run("err. email required", func(t *testing.T) {
		t.Parallel()
		e, _, _, _ := newTestEcho(t)

		r := httptest.NewRequest(http.MethodGet, "/api/my-books", http.NoBody)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, `{"message":"email is required"}`, strings.Trim(w.Body.String(), "\n"))
	})

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		e, _, loans, _ := newTestEcho(t)
		loans.EXPECT().
			ListByEmail(context.Background(), "aibek@example.com").
			Return([]model.LoanSummary{}, nil)

		r := httptest.NewRequest(http.MethodGet, "/api/my-books?email=aibek@example.com", http.NoBody)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, `[]`, strings.Trim(w.Body.String(), "\n"))
	})
}
