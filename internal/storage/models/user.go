// internal/storage/models/user.go
package models

import "time"

// User is a Telegram account with its custodial wallet.
// PrivateKey is the base58 encoding of the 64-byte ed25519 key.
type User struct {
	ID            int64
	TelegramID    int64
	Username      string
	WalletAddress string
	PrivateKey    string
	CreatedAt     time.Time
}
