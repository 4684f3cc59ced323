package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	alphanumeric = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	upperCode    = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

func GenerateRandomString(length int) string {
	return randomFrom(alphanumeric, length)
}

// GenerateReferenceCode returns an upper-case code without easily confused
// letters, suitable for a customer to type into a bank transfer.
func GenerateReferenceCode(length int) string {
	return randomFrom(upperCode, length)
}

func randomFrom(charset string, length int) string {
	result := make([]byte, length)
	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}
	return string(result)
}
