package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password with the given bcrypt
// cost. Costs outside bcrypt's valid range fall back to the library
// default, so a misconfigured BCRYPT_COST still yields a usable hash.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether the plaintext matches the stored
// bcrypt hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
