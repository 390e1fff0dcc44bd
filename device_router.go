package main

import (
	"github.com/erc7824/nitrolite/hwbridge/pkg/bridge"
	"github.com/erc7824/nitrolite/hwbridge/pkg/device"
	"github.com/erc7824/nitrolite/hwbridge/pkg/log"
)

const (
	CommandInit        = "init"
	CommandGetFeatures = "getFeatures"
	CommandGetPK       = "getpk"
	CommandGetAddr     = "getaddr"
	CommandClose       = "close"
	CommandExit        = "exit"
)

// PublicKeyParams are the properties of a getpk command.
type PublicKeyParams struct {
	Path string `json:"path" validate:"required"`
	Coin string `json:"coin" validate:"required"`
}

// AddressParams are the properties of a getaddr command.
type AddressParams struct {
	Path         string `json:"path" validate:"required"`
	Coin         string `json:"coin" validate:"required"`
	ShowOnTrezor *bool  `json:"showOnTrezor,omitempty"`
}

// ShowOnDevice reports whether the address is displayed for confirmation.
// An absent or null showOnTrezor means true.
func (p AddressParams) ShowOnDevice() bool {
	return p.ShowOnTrezor == nil || *p.ShowOnTrezor
}

// DeviceRouter binds the device commands to a connector and a session.
type DeviceRouter struct {
	Connector device.Connector
	Session   *DeviceSession
	lg        log.Logger
}

// NewDeviceRouter registers every device command on p.
//
// Handler chains validate command properties first and check the session
// second, so a malformed getpk is reported as such even before init.
func NewDeviceRouter(p *bridge.Processor, connector device.Connector, session *DeviceSession, logger log.Logger) *DeviceRouter {
	r := &DeviceRouter{
		Connector: connector,
		Session:   session,
		lg:        logger.WithName("device-router"),
	}

	p.Handle(CommandInit, r.HandleInit)
	p.Handle(CommandGetFeatures, r.RequireReady, r.HandleGetFeatures)
	p.Handle(CommandGetPK, bridge.BindParams[PublicKeyParams](), r.RequireReady, r.HandleGetPublicKey)
	p.Handle(CommandGetAddr, bridge.BindParams[AddressParams](), r.RequireReady, r.HandleGetAddress)
	p.Handle(CommandClose, r.HandleClose)
	p.Handle(CommandExit, r.HandleExit)

	return r
}

// RequireReady stops the chain unless the session is READY.
func (r *DeviceRouter) RequireReady(c *bridge.Context) {
	if !r.Session.IsInitialized() {
		c.Fail(bridge.Errorf(bridge.MsgNotInitialized), "")
		return
	}
	c.Next()
}

// HandleInit initializes the connector once per session.
func (r *DeviceRouter) HandleInit(c *bridge.Context) {
	if r.Session.IsInitialized() {
		c.SucceedWithMessage(bridge.MsgAlreadyInitialized)
		return
	}

	c.Logger.Info("waiting for you to confirm on the Trezor device")
	if err := r.Connector.Initialize(c.Context); err != nil {
		c.Fail(err, err.Error())
		return
	}

	r.Session.MarkInitialized()
	r.lg.Info("device session ready")
	c.Succeed(nil)
}

func (r *DeviceRouter) HandleGetFeatures(c *bridge.Context) {
	features, err := r.Connector.GetFeatures(c.Context)
	if err != nil {
		c.Fail(err, err.Error())
		return
	}
	c.Succeed(features)
}

func (r *DeviceRouter) HandleGetPublicKey(c *bridge.Context) {
	params := bridge.GetParams[PublicKeyParams](c)

	c.Logger.Info("waiting for you to confirm the public key request on the device", "path", params.Path, "coin", params.Coin)
	pk, err := r.Connector.GetPublicKey(c.Context, params.Path, params.Coin)
	if err != nil {
		c.Fail(err, err.Error())
		return
	}
	c.Succeed(pk)
}

func (r *DeviceRouter) HandleGetAddress(c *bridge.Context) {
	params := bridge.GetParams[AddressParams](c)
	show := params.ShowOnDevice()

	c.Logger.Info("waiting for address from the device", "path", params.Path, "coin", params.Coin, "showOnTrezor", show)
	addr, err := r.Connector.GetAddress(c.Context, params.Path, params.Coin, show)
	if err != nil {
		c.Fail(err, err.Error())
		return
	}
	c.Succeed(addr)
}

// HandleClose releases the device. A failed release leaves the session READY.
func (r *DeviceRouter) HandleClose(c *bridge.Context) {
	if !r.Session.IsInitialized() {
		c.SucceedWithMessage(bridge.MsgNotInitializedClose)
		return
	}

	if err := device.Disconnect(c.Context, r.Connector); err != nil {
		c.Fail(err, err.Error())
		return
	}

	r.Session.MarkUninitialized()
	r.lg.Info("device session closed")
	c.SucceedWithMessage(bridge.MsgConnectionClosed)
}

// HandleExit releases the device when needed and stops the processor. It
// always answers with success; a failed release is only logged.
func (r *DeviceRouter) HandleExit(c *bridge.Context) {
	c.Exit()

	if r.Session.IsInitialized() {
		if err := device.Disconnect(c.Context, r.Connector); err != nil {
			c.Logger.Warn("failed to release device on exit", "error", err)
		}
		r.Session.MarkUninitialized()
	}

	c.SucceedWithMessage(bridge.MsgExiting)
}
