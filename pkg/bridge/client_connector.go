package bridge

import (
	"context"

	"github.com/erc7824/nitrolite/hwbridge/pkg/device"
)

var (
	_ device.Connector    = (*ClientConnector)(nil)
	_ device.Disconnector = (*ClientConnector)(nil)
)

// ClientConnector exposes a Client as a device.Connector, delegating every
// capability to the processor behind it.
type ClientConnector struct {
	client *Client
}

func NewClientConnector(client *Client) *ClientConnector {
	return &ClientConnector{client: client}
}

func (cc *ClientConnector) Initialize(ctx context.Context) error {
	_, err := cc.client.Init(ctx)
	return err
}

func (cc *ClientConnector) GetFeatures(ctx context.Context) (device.Features, error) {
	return cc.client.GetFeatures(ctx)
}

func (cc *ClientConnector) GetPublicKey(ctx context.Context, path, coin string) (device.PublicKey, error) {
	return cc.client.GetPublicKey(ctx, path, coin)
}

func (cc *ClientConnector) GetAddress(ctx context.Context, path, coin string, showOnDevice bool) (device.Address, error) {
	return cc.client.GetAddress(ctx, path, coin, showOnDevice)
}

func (cc *ClientConnector) Disconnect(ctx context.Context) error {
	_, err := cc.client.CloseConnection(ctx)
	return err
}

// Close shuts the processor behind the client down.
func (cc *ClientConnector) Close() error {
	return cc.client.Close()
}
