// Package ethusb talks to a Trezor attached over USB HID through the
// go-ethereum usbwallet driver, without a Trezor Connect helper.
//
// The driver only speaks the Ethereum application: addresses can be derived
// for the Ethereum-family coins listed in coins.yaml, public key export and on-device address display
// are not available and are reported as unsupported.
package ethusb

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/usbwallet"

	"github.com/erc7824/nitrolite/hwbridge/pkg/device"
	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

const connectorName = "usb"

var (
	_ device.Connector    = (*Connector)(nil)
	_ device.Disconnector = (*Connector)(nil)
)

// Wallet is the part of accounts.Wallet the connector uses.
type Wallet interface {
	URL() accounts.URL
	Status() (string, error)
	Open(passphrase string) error
	Close() error
	Derive(path accounts.DerivationPath, pin bool) (accounts.Account, error)
}

// WalletSource lists the wallets currently attached.
type WalletSource interface {
	Wallets() ([]Wallet, error)
}

// TrezorHub is a WalletSource over the usbwallet HID hub. The hub is created on
// first use so that constructing a connector never touches USB.
type TrezorHub struct {
	once sync.Once
	hub  *usbwallet.Hub
	err  error
}

func (t *TrezorHub) Wallets() ([]Wallet, error) {
	t.once.Do(func() {
		t.hub, t.err = usbwallet.NewTrezorHubWithHID()
	})
	if t.err != nil {
		return nil, fmt.Errorf("open trezor usb hub: %w", t.err)
	}

	found := t.hub.Wallets()
	wallets := make([]Wallet, 0, len(found))
	for _, w := range found {
		wallets = append(wallets, w)
	}
	return wallets, nil
}

// Connector drives the first attached Trezor.
type Connector struct {
	source WalletSource
	coins  CoinsConfig
	logger log.Logger
	wallet Wallet
}

func NewConnector(source WalletSource, coins CoinsConfig, logger log.Logger) *Connector {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Connector{
		source: source,
		coins:  coins,
		logger: logger.WithName(connectorName),
	}
}

// Initialize opens the first wallet the hub reports. Opening may require the
// holder to unlock the device; the driver's PIN and passphrase errors are
// returned as they are and the device is released, so a later init starts over.
// No PIN is ever sent: a device asking for a host-entered PIN cannot be opened
// here and needs the process connector.
func (c *Connector) Initialize(ctx context.Context) error {
	if c.wallet != nil {
		return nil
	}

	wallets, err := c.source.Wallets()
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return device.ErrNoDevice
	}

	w := wallets[0]
	c.logger.Info("opening device, confirm on the Trezor if prompted", "url", w.URL().String())
	if err := w.Open(""); err != nil {
		// The driver keeps the HID handle after a failed open.
		if closeErr := w.Close(); closeErr != nil {
			c.logger.Warn("failed to release device after open failure", "url", w.URL().String(), "error", closeErr)
		}
		return fmt.Errorf("open %s: %w", w.URL().String(), err)
	}
	c.wallet = w
	return nil
}

func (c *Connector) GetFeatures(ctx context.Context) (device.Features, error) {
	w, err := c.openWallet()
	if err != nil {
		return device.Features{}, err
	}

	status, err := w.Status()
	if err != nil {
		return device.Features{}, fmt.Errorf("device status: %w", err)
	}

	url := w.URL()
	return device.Features{
		Vendor:      "trezor.io",
		DeviceID:    url.Path,
		Initialized: true,
		Unlocked:    true,
		Status:      status,
	}, nil
}

func (c *Connector) GetPublicKey(ctx context.Context, path, coin string) (device.PublicKey, error) {
	return device.PublicKey{}, device.UnsupportedError(connectorName, "getPublicKey")
}

func (c *Connector) GetAddress(ctx context.Context, path, coin string, showOnDevice bool) (device.Address, error) {
	if !c.coins.Supports(coin) {
		return device.Address{}, device.UnsupportedError(connectorName, "getAddress for coin "+coin)
	}
	if showOnDevice {
		return device.Address{}, device.UnsupportedError(connectorName, "address display, set showOnTrezor to false")
	}

	w, err := c.openWallet()
	if err != nil {
		return device.Address{}, err
	}
	dp, err := device.ParsePath(path)
	if err != nil {
		return device.Address{}, err
	}

	account, err := w.Derive(dp, false)
	if err != nil {
		return device.Address{}, fmt.Errorf("derive %s: %w", dp.String(), err)
	}

	return device.Address{
		Path:           dp,
		SerializedPath: dp.String(),
		Address:        account.Address.Hex(),
	}, nil
}

// Disconnect closes the opened wallet. It is a no-op when nothing is open.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.wallet == nil {
		return nil
	}
	if err := c.wallet.Close(); err != nil {
		return fmt.Errorf("close %s: %w", c.wallet.URL().String(), err)
	}
	c.wallet = nil
	return nil
}

func (c *Connector) openWallet() (Wallet, error) {
	if c.wallet == nil {
		return nil, fmt.Errorf("%s connector: device not opened", connectorName)
	}
	return c.wallet, nil
}
