package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	ROLE_STANDARD = "standard"
	ROLE_ADMIN    = "admin"
)

// UnknownAdminName is logged when the acting admin's profile cannot be resolved.
const UnknownAdminName = "Unknown Admin"

type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	FullName    string     `gorm:"type:varchar(150)" json:"full_name" validate:"max=150"`
	Email       string     `gorm:"uniqueIndex;type:varchar(200);not null" json:"email" validate:"required,email,min=5,max=200"`
	Password    string     `gorm:"type:text" json:"-"`
	Role        string     `gorm:"type:varchar(20);not null;default:'standard'" json:"role" validate:"oneof=standard admin"`
	IsActive    bool       `gorm:"not null;default:true;index" json:"is_active"`
	LastLoginAt *time.Time `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(fullName string, email string, password string, role string) (*User, error) {
	if role == "" {
		role = ROLE_STANDARD
	}

	u := &User{
		FullName: strings.TrimSpace(fullName),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Role:     role,
		IsActive: true,
	}

	if password != "" {
		pw, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		u.Password = pw
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	if u.Password == "" {
		return false
	}
	return CheckPasswordHash(password, u.Password)
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// DisplayName returns the name used in audit descriptions: full name, then
// email, then UnknownAdminName.
func (u *User) DisplayName() string {
	if u == nil {
		return UnknownAdminName
	}
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	if email := strings.TrimSpace(u.Email); email != "" {
		return email
	}
	return UnknownAdminName
}

// IsValidRole reports whether role is one of the supported roles.
func IsValidRole(role string) bool {
	return role == ROLE_ADMIN || role == ROLE_STANDARD
}
