package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generator produces candidate codes. Injectable so tests can force
// collisions deterministically.
type Generator func() (string, error)

var codeSpace = big.NewInt(9000)

// NumericCode generates a 4-digit code in [1000, 9999]. The short space is
// fine because uniqueness is only required among currently live tokens.
func NumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}
