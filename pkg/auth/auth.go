package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

const RoleAdmin = "admin"

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")
)

type Config struct {
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	AdminUsername     string        `envconfig:"ADMIN_USERNAME" required:"true"`
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`
	AdminSessionTTL   time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"72h"`
}

// AdminClaims is the admin session credential carried in a cookie.
type AdminClaims struct {
	Profile struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"profile"`
	jwt.RegisteredClaims
}

// ReadClaims authorizes reading one book for one approved loan.
type ReadClaims struct {
	LoanID int    `json:"loanId"`
	BookID int    `json:"bookId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

func (m *Manager) MintAdminToken(username string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	claims := &AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	claims.Profile.Username = username
	claims.Profile.Role = RoleAdmin

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (m *Manager) ParseAdminToken(tokenStr string) (*AdminClaims, error) {
	claims := new(AdminClaims)
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Profile.Role != RoleAdmin {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (m *Manager) MintReadToken(loanID, bookID int, email string, expiresAt time.Time) (string, error) {
	claims := &ReadClaims{
		LoanID: loanID,
		BookID: bookID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) ParseReadToken(tokenStr string) (*ReadClaims, error) {
	claims := new(ReadClaims)
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
