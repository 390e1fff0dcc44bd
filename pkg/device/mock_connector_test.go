package device_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erc7824/nitrolite/hwbridge/pkg/device"
)

func TestMockConnector_Deterministic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := device.NewMockConnector("alice")
	b := device.NewMockConnector("alice")
	c := device.NewMockConnector("bob")

	addrA, err := a.GetAddress(ctx, "m/44'/60'/0'/0/0", "eth", true)
	require.NoError(t, err)
	addrB, err := b.GetAddress(ctx, "m/44'/60'/0'/0/0", "ETH", false)
	require.NoError(t, err)
	addrC, err := c.GetAddress(ctx, "m/44'/60'/0'/0/0", "eth", true)
	require.NoError(t, err)

	assert.Equal(t, addrA.Address, addrB.Address)
	assert.NotEqual(t, addrA.Address, addrC.Address)
	assert.True(t, common.IsHexAddress(addrA.Address))
	assert.Equal(t, "m/44'/60'/0'/0/0", addrA.SerializedPath)
	assert.Equal(t, []uint32{0x8000002c, 0x8000003c, 0x80000000, 0, 0}, addrA.Path)
}

func TestMockConnector_PublicKey(t *testing.T) {
	t.Parallel()

	m := device.NewMockConnector("alice")
	pk, err := m.GetPublicKey(context.Background(), "m/44'/1'/0'", "Testnet")
	require.NoError(t, err)

	assert.Equal(t, "m/44'/1'/0'", pk.SerializedPath)
	assert.Equal(t, uint32(3), pk.Depth)
	assert.Equal(t, uint32(0x80000000), pk.ChildNum)
	assert.Len(t, pk.PublicKey, 66)
	assert.Len(t, pk.ChainCode, 64)
	assert.NotEmpty(t, pk.Xpub)
}

func TestMockConnector_InvalidPath(t *testing.T) {
	t.Parallel()

	m := device.NewMockConnector("alice")
	_, err := m.GetAddress(context.Background(), "not/a/path", "eth", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid derivation path")
}

func TestMockConnector_RecordsCallsAndErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := device.NewMockConnector("alice")
	rejected := errors.New("Action cancelled by user")
	m.SetError(device.OpGetAddress, rejected)

	require.NoError(t, m.Initialize(ctx))
	assert.True(t, m.Opened())

	_, err := m.GetAddress(ctx, "m/44'/1'/0'/0/0", "Testnet", true)
	assert.ErrorIs(t, err, rejected)

	m.SetError(device.OpGetAddress, nil)
	_, err = m.GetAddress(ctx, "m/44'/1'/0'/0/0", "Testnet", false)
	require.NoError(t, err)

	require.NoError(t, device.Disconnect(ctx, m))
	assert.False(t, m.Opened())

	assert.Equal(t, []device.MockCall{
		{Op: device.OpInitialize},
		{Op: device.OpGetAddress, Path: "m/44'/1'/0'/0/0", Coin: "Testnet", ShowOnDevice: true},
		{Op: device.OpGetAddress, Path: "m/44'/1'/0'/0/0", Coin: "Testnet", ShowOnDevice: false},
		{Op: device.OpDisconnect},
	}, m.Calls())
	assert.Equal(t, 2, m.CallCount(device.OpGetAddress))
}

func TestDisconnect_OptionalCapability(t *testing.T) {
	t.Parallel()

	m := device.NewMockConnector("alice")
	withoutDisconnect := struct{ device.Connector }{m}

	require.NoError(t, device.Disconnect(context.Background(), withoutDisconnect))
	assert.Zero(t, m.CallCount(device.OpDisconnect))
}

func TestUnsupportedError(t *testing.T) {
	t.Parallel()

	err := device.UnsupportedError("usb", "getPublicKey")
	assert.ErrorIs(t, err, device.ErrUnsupported)
	assert.Equal(t, "usb connector: getPublicKey: operation not supported by connector", err.Error())
}
