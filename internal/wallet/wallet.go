// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrSignerNotFound is returned when the wallet key is not among the
// transaction's required signers.
var ErrSignerNotFound = errors.New("wallet is not a required signer of the transaction")

// Wallet представляет кошелёк Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// Generate создаёт новый случайный ed25519 кошелёк.
func Generate() (*Wallet, error) {
	privateKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Wallet{PrivateKey: privateKey, PublicKey: privateKey.PublicKey()}, nil
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// Address returns the base58 public key.
func (w *Wallet) Address() string {
	return w.PublicKey.String()
}

// ExportKey returns the base58 encoding of the 64-byte secret key, the format
// Phantom and Solflare import.
func (w *Wallet) ExportKey() string {
	return base58.Encode(w.PrivateKey)
}

// SignTransaction подписывает транзакцию ключом кошелька.
//
// Aggregator transactions arrive with zeroed signature slots already sized for
// every required signer, so the signature is written into the wallet's slot
// instead of being appended.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := w.sign(tx)
	return err
}

// sign writes the wallet signature into its slot and returns the slot index.
func (w *Wallet) sign(tx *solana.Transaction) (int, error) {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required > len(tx.Message.AccountKeys) {
		return 0, fmt.Errorf("malformed message: %d signers but %d account keys", required, len(tx.Message.AccountKeys))
	}

	index := -1
	for i, key := range tx.Message.AccountKeys[:required] {
		if key.Equals(w.PublicKey) {
			index = i
			break
		}
	}
	if index < 0 {
		return 0, ErrSignerNotFound
	}

	payload, err := tx.Message.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("failed to serialize message: %w", err)
	}
	signature, err := w.PrivateKey.Sign(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to sign message: %w", err)
	}

	for len(tx.Signatures) < required {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
	tx.Signatures[index] = signature
	return index, nil
}

// SignSerialized decodes a wire-format transaction, signs it and re-encodes it.
// The returned signature is the wallet's own, whichever signer slot it holds.
func (w *Wallet) SignSerialized(raw []byte) ([]byte, solana.Signature, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("failed to decode transaction: %w", err)
	}
	index, err := w.sign(tx)
	if err != nil {
		return nil, solana.Signature{}, err
	}
	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return signed, tx.Signatures[index], nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
