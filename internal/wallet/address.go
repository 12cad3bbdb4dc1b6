package wallet

import (
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var ErrInvalidAddress = errors.New("invalid solana address")

// ParseAddress accepts a 32-44 character base58 string that decodes to a
// 32-byte public key.
func ParseAddress(s string) (solana.PublicKey, error) {
	if len(s) < 32 || len(s) > 44 {
		return solana.PublicKey{}, ErrInvalidAddress
	}
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, ErrInvalidAddress
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// LooksLikeAddress is the cheap length check used to route free text.
func LooksLikeAddress(s string) bool {
	return len(s) >= 32 && len(s) <= 44
}
