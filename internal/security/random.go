package security

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strconv"
)

// NewRandomString returns n random bytes encoded as unpadded base64url.
func NewRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewActivationCode returns a uniformly random code in 1000..9999.
func NewActivationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+1000, 10), nil
}
