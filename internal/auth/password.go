package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost of 10 keeps register and login interactive-fast.
const hashCost = 10

func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// passwordMatches reports whether plain hashes to the stored digest.
func passwordMatches(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
