package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/volman/internal/model"
)

const minPasswordLength = 8

// ValidatePassword はパスワードポリシーを検査する。
// 8文字以上で、大文字・小文字・数字・記号を各1文字以上含むこと。
// 違反時は *model.APIError（WEAK_PASSWORD）を返す。
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return model.NewWeakPasswordError()
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return model.NewWeakPasswordError()
	}
	return nil
}

// HashPassword はパスワードをbcryptでハッシュ化する。
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", model.NewWeakPasswordError()
		}
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword はパスワードとハッシュを照合する。
// 不一致の場合は *model.APIError（INVALID_CREDENTIALS）を返す。
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return model.NewInvalidCredentialsError()
		}
		return err
	}
	return nil
}
