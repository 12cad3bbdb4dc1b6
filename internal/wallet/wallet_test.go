package wallet

import (
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsignedTransfer(t *testing.T, payer solana.PublicKey) []byte {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1000, payer, solana.NewWallet().PublicKey()).Build(),
		},
		solana.Hash{1, 2, 3},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func TestGenerateRoundTrip(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	restored, err := NewWallet(w.ExportKey())
	require.NoError(t, err)
	assert.Equal(t, w.Address(), restored.Address())
	assert.Len(t, w.PrivateKey, 64)
}

func TestNewWalletRejectsBadKeys(t *testing.T) {
	_, err := NewWallet("not-base58-0OIl")
	assert.Error(t, err)

	_, err = NewWallet("3mJr7AoUXx2Wqd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid private key length")
}

func TestSignSerialized(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	signed, signature, err := w.SignSerialized(unsignedTransfer(t, w.PublicKey))
	require.NoError(t, err)

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signed))
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, signature, tx.Signatures[0])

	message, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, tx.Signatures[0].Verify(w.PublicKey, message))
}

func TestSignSerializedReturnsOwnSlot(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	feePayer := solana.NewWallet().PublicKey()

	unsigned, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1000, w.PublicKey, solana.NewWallet().PublicKey()).Build(),
		},
		solana.Hash{4, 5, 6},
		solana.TransactionPayer(feePayer),
	)
	require.NoError(t, err)
	require.Equal(t, feePayer, unsigned.Message.AccountKeys[0])
	require.Equal(t, w.PublicKey, unsigned.Message.AccountKeys[1])
	raw, err := unsigned.MarshalBinary()
	require.NoError(t, err)

	signed, signature, err := w.SignSerialized(raw)
	require.NoError(t, err)

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signed))
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 2)
	assert.True(t, tx.Signatures[0].IsZero(), "fee payer slot stays empty")
	assert.Equal(t, tx.Signatures[1], signature)

	message, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, signature.Verify(w.PublicKey, message))
}

func TestSignReplacesPlaceholder(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	raw := unsignedTransfer(t, w.PublicKey)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	tx.Signatures = []solana.Signature{{}}

	require.NoError(t, w.SignTransaction(tx))
	assert.Len(t, tx.Signatures, 1)
	assert.False(t, tx.Signatures[0].IsZero())
}

func TestSignRejectsForeignTransaction(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	_, _, err = w.SignSerialized(unsignedTransfer(t, solana.NewWallet().PublicKey()))
	assert.ErrorIs(t, err, ErrSignerNotFound)
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"wrapped sol", "So11111111111111111111111111111111111111112", true},
		{"usdc", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", true},
		{"too short", "So1111", false},
		{"too long", "So11111111111111111111111111111111111111112222222", false},
		{"bad alphabet", "0OIl111111111111111111111111111111111111112", false},
		{"decodes to wrong length", "11111111111111111111111111111111111", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseAddress(tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, key.String())
		})
	}
}
