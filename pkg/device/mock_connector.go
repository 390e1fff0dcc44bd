package device

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	_ Connector    = (*MockConnector)(nil)
	_ Disconnector = (*MockConnector)(nil)
)

// Operation names a connector capability.
type Operation string

const (
	OpInitialize   Operation = "initialize"
	OpGetFeatures  Operation = "getFeatures"
	OpGetPublicKey Operation = "getPublicKey"
	OpGetAddress   Operation = "getAddress"
	OpDisconnect   Operation = "disconnect"
)

// MockCall is one recorded invocation of a MockConnector.
type MockCall struct {
	Op           Operation
	Path         string
	Coin         string
	ShowOnDevice bool
}

// MockConnector is an in-process Connector with deterministic key material.
// Keys are derived from the label, the path and the coin, so two mocks with the
// same label agree. Errors can be injected per operation.
type MockConnector struct {
	mu     sync.Mutex
	label  string
	seed   common.Hash
	errs   map[Operation]error
	calls  []MockCall
	opened bool
}

// NewMockConnector creates a MockConnector whose device reports label.
func NewMockConnector(label string) *MockConnector {
	return &MockConnector{
		label: label,
		seed:  crypto.Keccak256Hash([]byte("hwbridge-mock:" + label)),
		errs:  make(map[Operation]error),
	}
}

// SetError makes every later call of op fail with err. A nil err clears it.
func (m *MockConnector) SetError(op Operation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.errs, op)
		return
	}
	m.errs[op] = err
}

// Calls returns a copy of the recorded calls in order.
func (m *MockConnector) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times op was invoked.
func (m *MockConnector) CallCount(op Operation) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Opened reports whether Initialize succeeded and Disconnect has not been called since.
func (m *MockConnector) Opened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.opened
}

func (m *MockConnector) record(call MockCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)
	return m.errs[call.Op]
}

func (m *MockConnector) Initialize(ctx context.Context) error {
	if err := m.record(MockCall{Op: OpInitialize}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.opened = true
	m.mu.Unlock()
	return nil
}

func (m *MockConnector) GetFeatures(ctx context.Context) (Features, error) {
	if err := m.record(MockCall{Op: OpGetFeatures}); err != nil {
		return Features{}, err
	}

	return Features{
		Vendor:             "trezor.io",
		MajorVersion:       2,
		MinorVersion:       8,
		PatchVersion:       1,
		DeviceID:           strings.ToUpper(hex.EncodeToString(m.seed[:12])),
		Label:              m.label,
		Initialized:        true,
		Unlocked:           true,
		Model:              "T",
		InternalModel:      "T2T1",
		FwVendor:           "SatoshiLabs",
		BackupAvailability: "NotAvailable",
		RecoveryStatus:     "Nothing",
		BackupType:         "Bip39",
		SafetyChecks:       "Strict",
		Capabilities:       []string{"Capability_Bitcoin", "Capability_Ethereum"},
		Status:             "mock device online",
	}, nil
}

func (m *MockConnector) GetPublicKey(ctx context.Context, path, coin string) (PublicKey, error) {
	if err := m.record(MockCall{Op: OpGetPublicKey, Path: path, Coin: coin}); err != nil {
		return PublicKey{}, err
	}

	dp, err := ParsePath(path)
	if err != nil {
		return PublicKey{}, err
	}
	node := m.derive(dp.String(), coin)
	key, err := crypto.ToECDSA(node[:])
	if err != nil {
		return PublicKey{}, fmt.Errorf("mock key derivation: %w", err)
	}
	chainCode := crypto.Keccak256Hash(node[:], []byte("chain"))
	parent := m.derive(parentPath(dp.String()), coin)

	var childNum uint32
	if len(dp) > 0 {
		childNum = dp[len(dp)-1]
	}
	pub := hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey))

	return PublicKey{
		Path:           dp,
		SerializedPath: dp.String(),
		ChildNum:       childNum,
		Xpub:           "xpub-mock-" + hex.EncodeToString(node[:16]),
		ChainCode:      hex.EncodeToString(chainCode[:]),
		PublicKey:      pub,
		Fingerprint:    binary.BigEndian.Uint32(parent[:4]),
		Depth:          uint32(len(dp)),
		Descriptor:     fmt.Sprintf("pkh([%08x]%s)", binary.BigEndian.Uint32(m.seed[:4]), pub),
	}, nil
}

func (m *MockConnector) GetAddress(ctx context.Context, path, coin string, showOnDevice bool) (Address, error) {
	if err := m.record(MockCall{Op: OpGetAddress, Path: path, Coin: coin, ShowOnDevice: showOnDevice}); err != nil {
		return Address{}, err
	}

	dp, err := ParsePath(path)
	if err != nil {
		return Address{}, err
	}
	node := m.derive(dp.String(), coin)
	key, err := crypto.ToECDSA(node[:])
	if err != nil {
		return Address{}, fmt.Errorf("mock key derivation: %w", err)
	}

	return Address{
		Path:           dp,
		SerializedPath: dp.String(),
		Address:        crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

func (m *MockConnector) Disconnect(ctx context.Context) error {
	if err := m.record(MockCall{Op: OpDisconnect}); err != nil {
		return err
	}

	m.mu.Lock()
	m.opened = false
	m.mu.Unlock()
	return nil
}

func (m *MockConnector) derive(path, coin string) common.Hash {
	return crypto.Keccak256Hash(m.seed[:], []byte(strings.ToLower(coin)), []byte(path))
}

func parentPath(path string) string {
	if i := strings.LastIndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return path
}
