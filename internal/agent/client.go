package agent

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pccr10001/smsfleet/internal/hub"
	"github.com/pccr10001/smsfleet/pkg/logger"
)

const (
	reconnectMinDelay = 1 * time.Second
	reconnectMaxDelay = 60 * time.Second
)

// Client maintains the agent's persistent connection to the server
// hub, re-registering the device after every reconnect.
type Client struct {
	serverURL string
	deviceID  string
	driver    *Driver

	mu sync.Mutex
	ws *websocket.Conn
}

func NewClient(serverURL, deviceID string, driver *Driver) *Client {
	c := &Client{serverURL: serverURL, deviceID: deviceID, driver: driver}
	driver.publish = c.Send
	return c
}

// Run connects and keeps reconnecting with exponential backoff until
// the context is canceled.
func (c *Client) Run(ctx context.Context) {
	delay := reconnectMinDelay
	for {
		if ctx.Err() != nil {
			return
		}

		ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.serverURL, nil)
		if err != nil {
			logger.Log.Warnf("Hub connection failed: %v, retrying in %v", err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			if delay *= 2; delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		delay = reconnectMinDelay
		c.mu.Lock()
		c.ws = ws
		c.mu.Unlock()
		logger.Log.Infof("Connected to hub at %s", c.serverURL)

		if err := c.Send(hub.MessageTypeRegisterDevice, hub.RegisterDevicePayload{DeviceID: c.deviceID}); err != nil {
			logger.Log.Errorf("Failed to register device: %v", err)
		}

		c.readLoop(ctx, ws)

		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		ws.Close()
	}
}

func (c *Client) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		var msg hub.Message
		if err := ws.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				logger.Log.Warnf("Hub connection lost: %v", err)
			}
			return
		}
		go c.dispatch(ctx, msg)
	}
}

func (c *Client) dispatch(ctx context.Context, msg hub.Message) {
	switch msg.Type {
	case hub.MessageTypeScanComPorts:
		var p hub.ScanComPortsPayload
		if err := msg.Decode(&p); err != nil {
			logger.Log.Warnf("Bad ScanComPorts payload: %v", err)
			return
		}
		if c.forThisDevice(p.DeviceID) {
			c.driver.HandleScan(ctx)
		}

	case hub.MessageTypeStartSmsReceiver:
		var p hub.StartSmsReceiverPayload
		if err := msg.Decode(&p); err != nil {
			logger.Log.Warnf("Bad StartSmsReceiver payload: %v", err)
			return
		}
		if c.forThisDevice(p.DeviceID) {
			c.driver.HandleStartReceiver(p.Ports)
		}

	case hub.MessageTypeStopSmsReceiver:
		var p hub.StopSmsReceiverPayload
		if err := msg.Decode(&p); err != nil {
			logger.Log.Warnf("Bad StopSmsReceiver payload: %v", err)
			return
		}
		if c.forThisDevice(p.DeviceID) {
			c.driver.HandleStopReceiver(ctx)
		}

	case hub.MessageTypeSendSms:
		var p hub.SendSmsPayload
		if err := msg.Decode(&p); err != nil {
			logger.Log.Warnf("Bad SendSms payload: %v", err)
			return
		}
		if c.forThisDevice(p.DeviceID) {
			c.driver.HandleSendSms(ctx, p)
		}

	default:
		// Broadcasts intended for browser clients may arrive here too;
		// nothing to do with them.
	}
}

// forThisDevice accepts commands addressed to this device or to all
// devices (empty target).
func (c *Client) forThisDevice(target string) bool {
	return target == "" || equalFoldTrim(target, c.deviceID)
}

// Send publishes one message to the hub. Safe for concurrent use.
func (c *Client) Send(msgType hub.MessageType, payload interface{}) error {
	msg, err := hub.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		logger.Log.Warnf("Not connected, dropping %s", msgType)
		return nil
	}
	return c.ws.WriteJSON(msg)
}
