package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wibowo/expense-report/internal"
)

// User is the authenticated identity carried through request context. The
// admin flag drives every permission decision; there is no finer-grained
// role model.
type User struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"column:password_hash;not null"`
	IsAdmin   bool      `json:"is_admin" gorm:"column:is_admin;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Claims are the JWT token claims.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenGenerator creates and validates session tokens.
type TokenGenerator interface {
	GenerateToken(user *User) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// UserRepository is the data access contract the service needs.
type UserRepository interface {
	GetByUsername(username string) (*User, error)
	GetByID(id int64) (*User, error)
	Create(user *User) error
}

var (
	ErrInvalidCredentials = internal.NewUnauthorizedError("invalid credentials", internal.ErrCodeInvalidCredentials)
	ErrInvalidToken       = internal.NewUnauthorizedError("invalid token", internal.ErrCodeInvalidToken)
	ErrTokenExpired       = internal.NewUnauthorizedError("token has expired", internal.ErrCodeTokenExpired)
	ErrAdminRequired      = internal.NewForbiddenError("admin access required", internal.ErrCodeAdminRequired)
)

type ctxKey string

const contextUserKey ctxKey = "authUser"

func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextUserKey).(*User)
	return user, ok
}
