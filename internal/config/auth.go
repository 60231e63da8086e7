package config

import "golang.org/x/crypto/bcrypt"

// VerifyAuth compares the given credentials against the stored bcrypt hash.
func VerifyAuth(username, password string) bool {
	if username == "" {
		return false
	}
	auth := Get().GetAuth()
	if auth == nil {
		return false
	}
	if username != auth.Username {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(auth.Password), []byte(password))
	return err == nil
}

// HashPassword returns the bcrypt hash to store for a new password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
