package postgres

import (
	"errors"

	"github.com/wibowo/expense-report/internal/auth"
	"gorm.io/gorm"
)

// UserRepository implements auth.UserRepository using GORM.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) auth.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUsername(username string) (*auth.User, error) {
	var user auth.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(id int64) (*auth.User, error) {
	var user auth.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Create(user *auth.User) error {
	return r.db.Create(user).Error
}
