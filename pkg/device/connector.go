package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
)

var (
	// ErrUnsupported is returned when a connector lacks a capability for a request.
	ErrUnsupported = errors.New("operation not supported by connector")
	// ErrNoDevice is returned when no device is attached.
	ErrNoDevice = errors.New("no hardware device found")
)

// Connector is the capability set of a device connector.
type Connector interface {
	// Initialize prepares the connector and the device session.
	Initialize(ctx context.Context) error
	// GetFeatures returns the feature set reported by the device.
	GetFeatures(ctx context.Context) (Features, error)
	// GetPublicKey derives the public key at path for coin.
	GetPublicKey(ctx context.Context, path, coin string) (PublicKey, error)
	// GetAddress derives the address at path for coin. When showOnDevice is set the
	// device displays the address and waits for the holder to confirm it.
	GetAddress(ctx context.Context, path, coin string, showOnDevice bool) (Address, error)
}

// Disconnector is implemented by connectors that hold a releasable device handle.
type Disconnector interface {
	Disconnect(ctx context.Context) error
}

// Disconnect releases c when it supports it. Connectors without the capability
// report success.
func Disconnect(ctx context.Context, c Connector) error {
	d, ok := c.(Disconnector)
	if !ok {
		return nil
	}
	return d.Disconnect(ctx)
}

// ParsePath parses a BIP-32 path such as "m/44'/1'/0'/0/0".
func ParsePath(path string) (accounts.DerivationPath, error) {
	dp, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path %q: %w", path, err)
	}
	return dp, nil
}

// UnsupportedError wraps ErrUnsupported with the connector and the operation.
func UnsupportedError(connector, operation string) error {
	return fmt.Errorf("%s connector: %s: %w", connector, operation, ErrUnsupported)
}
