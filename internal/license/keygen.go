// internal/license/keygen.go
package license

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"

	"github.com/keygen-sh/keygen-go/v3"
	"go.uber.org/zap"
)

const minKeyLength = 8

var (
	ErrMissingKey = errors.New("license key is required")
	ErrShortKey   = errors.New("license key is too short")
	ErrExpired    = errors.New("license has expired")
)

// Settings are the license related config keys.
type Settings struct {
	Key          string
	AccountID    string
	ProductToken string
	ProductID    string
}

// UsesKeygen reports whether all keygen ids are configured.
func (s Settings) UsesKeygen() bool {
	return s.AccountID != "" && s.ProductToken != "" && s.ProductID != ""
}

// Check runs before the bot starts polling: keygen validation when it is
// configured, a basic key check otherwise.
func Check(ctx context.Context, s Settings, logger *zap.Logger) error {
	log := logger.Named("license")
	if err := checkKeyShape(s.Key); err != nil {
		return err
	}
	if !s.UsesKeygen() {
		log.Info("License validated (basic mode)")
		return nil
	}
	return NewKeygenValidator(s.AccountID, s.ProductToken, s.ProductID, log).ValidateLicense(ctx, s.Key)
}

func checkKeyShape(key string) error {
	switch {
	case key == "":
		return ErrMissingKey
	case len(key) < minKeyLength:
		return ErrShortKey
	}
	return nil
}

// KeygenValidator handles license validation using Keygen.sh
type KeygenValidator struct {
	logger    *zap.Logger
	accountID string
	productID string
}

// NewKeygenValidator configures the keygen package globals.
func NewKeygenValidator(accountID, productToken, productID string, logger *zap.Logger) *KeygenValidator {
	keygen.Account = accountID
	keygen.Product = productID
	keygen.Token = productToken

	return &KeygenValidator{
		logger:    logger,
		accountID: accountID,
		productID: productID,
	}
}

// ValidateLicense validates the key for this machine, activating it on
// first use.
func (kv *KeygenValidator) ValidateLicense(ctx context.Context, licenseKey string) error {
	if err := checkKeyShape(licenseKey); err != nil {
		return err
	}
	kv.logger.Info("🔑 Validating license: " + licenseKey[:minKeyLength] + "...")

	fingerprint, err := Fingerprint()
	if err != nil {
		return fmt.Errorf("failed to generate machine fingerprint: %w", err)
	}

	keygen.LicenseKey = licenseKey

	license, err := keygen.Validate(ctx, fingerprint)
	switch {
	case errors.Is(err, keygen.ErrLicenseNotActivated):
		kv.logger.Info("License not activated, attempting activation")
		machine, activateErr := license.Activate(ctx, fingerprint)
		if activateErr != nil {
			return fmt.Errorf("failed to activate license: %w", activateErr)
		}
		kv.logger.Info("License activated", zap.String("machine_id", machine.ID))

	case errors.Is(err, keygen.ErrLicenseExpired):
		return ErrExpired

	case err != nil:
		return fmt.Errorf("license validation failed: %w", err)
	}

	if license == nil {
		return fmt.Errorf("license not found")
	}

	kv.logger.Info("License validation successful", zap.String("license_id", license.ID))
	return nil
}

// Fingerprint is a stable machine id: hostname, first hardware address
// and OS, hashed.
func Fingerprint() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w", err)
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	var macs []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		macs = append(macs, iface.HardwareAddr.String())
	}
	sort.Strings(macs)

	mac := "none"
	if len(macs) > 0 {
		mac = macs[0]
	}

	hash := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", hostname, mac, runtime.GOOS)))
	return fmt.Sprintf("%x", hash), nil
}
