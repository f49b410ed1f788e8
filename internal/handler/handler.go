package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eshelf/loan-portal/internal/errs"
	"github.com/eshelf/loan-portal/internal/model"
	"github.com/eshelf/loan-portal/pkg/auth"
	"github.com/eshelf/loan-portal/pkg/validate"
	"github.com/eshelf/loan-portal/web"
)

type Handler struct {
	books  BookService
	loans  LoanService
	auth   AuthService
	tokens *auth.Manager
	log    *zap.Logger
}

func New(books BookService, loans LoanService, authSvc AuthService, tokens *auth.Manager, log *zap.Logger) *Handler {
	return &Handler{
		books:  books,
		loans:  loans,
		auth:   authSvc,
		tokens: tokens,
		log:    log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/", h.page("index.html"))
	base.GET("/login", h.page("login.html"))
	base.GET("/listbook", h.page("listbook.html"))
	base.GET("/dashboard", h.page("dashboard.html"), h.adminPageAuth)
	base.GET("/read", h.ReadPage)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api",
		middleware.RequestLoggerWithConfig(requestLoggerConfig(h.log.Named("echo"))),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
	)

	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)
	api.GET("/books", h.ListBooks)
	api.GET("/my-books", h.MyBooks)
	api.POST("/loan-request", h.CreateLoanRequest)
	api.POST("/get-read-token", h.GetReadToken)
	api.GET("/read-book", h.ReadBook)

	admin := api.Group("", h.adminAPIAuth)
	admin.POST("/upload", h.UploadBook)
	admin.GET("/loan-requests", h.ListLoanRequests)
	admin.POST("/approve-loan/:id", h.ApproveLoan)
	admin.POST("/reject-loan/:id", h.RejectLoan)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) page(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := web.Page(name)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.HTMLBlob(http.StatusOK, data)
	}
}

// ReadPage serves the reader and caches the token in a cookie scoped to the
// token's own expiry, so subsequent loads work without the query parameter.
func (h *Handler) ReadPage(c echo.Context) error {
	if token := c.QueryParam("token"); token != "" {
		if claims, err := h.tokens.ParseReadToken(token); err == nil && claims.ExpiresAt != nil {
			c.SetCookie(&http.Cookie{
				Name:     readSessionCookie,
				Value:    token,
				Path:     "/",
				Expires:  claims.ExpiresAt.Time,
				HttpOnly: true,
			})
		}
	}
	return h.page("read.html")(c)
}

func (h *Handler) Login(c echo.Context) error {
	var req model.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, expiresAt, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrBadCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.SetCookie(&http.Cookie{
		Name:     adminSessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}

func (h *Handler) Logout(c echo.Context) error {
	clearCookie(c, adminSessionCookie)
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}

func (h *Handler) UploadBook(c echo.Context) error {
	req := model.UploadBookRequest{
		Title:        c.QueryParam("title"),
		Synopsis:     c.QueryParam("synopsis"),
		ThumbnailURL: c.QueryParam("thumbnail_url"),
		Filename:     c.QueryParam("filename"),
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// ContentLength is -1 for chunked uploads; the store streams those.
	size := c.Request().ContentLength
	if size == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	book, err := h.books.Upload(c.Request().Context(), req, c.Request().Body, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) ListBooks(c echo.Context) error {
	books, err := h.books.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) MyBooks(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	loans, err := h.loans.ListByEmail(c.Request().Context(), email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) CreateLoanRequest(c echo.Context) error {
	var req model.CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	loan, err := h.loans.Create(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "book not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) ListLoanRequests(c echo.Context) error {
	loans, err := h.loans.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) ApproveLoan(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	loan, err := h.loans.Approve(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) RejectLoan(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	if err := h.loans.Reject(c.Request().Context(), id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) GetReadToken(c echo.Context) error {
	var req model.RedeemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, err := h.loans.Redeem(c.Request().Context(), req.AccessCode)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if errors.Is(err, errs.ErrExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, model.ReadTokenResponse{Token: token})
}

func (h *Handler) ReadBook(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		if cookie, err := c.Cookie(readSessionCookie); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return echo.NewHTTPError(http.StatusForbidden, errs.ErrForbidden.Error())
	}

	book, err := h.loans.VerifyRead(c.Request().Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrSessionExpired):
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		case errors.Is(err, errs.ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, errs.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, book)
}
