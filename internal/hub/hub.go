package hub

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pccr10001/smsfleet/pkg/logger"
)

// Hub tracks connected agents by deviceId, routes commands to a
// specific agent and fans events out to subscribed browser clients.
//
// The connection registry is process local; a multi-instance
// deployment would need a shared presence store (deviceId ->
// instance/connection, e.g. in redis) with pub/sub routing on top.
type Hub struct {
	mu      sync.RWMutex
	agents  map[string]*agentConn // connectionId -> conn
	devices map[string]string     // connectionId -> deviceId
	clients map[*ClientConn]bool

	ingest *Ingestor
}

func NewHub(ingest *Ingestor) *Hub {
	return &Hub{
		agents:  make(map[string]*agentConn),
		devices: make(map[string]string),
		clients: make(map[*ClientConn]bool),
		ingest:  ingest,
	}
}

// agentConn wraps one agent's websocket. Writes are serialized by a
// per-connection mutex.
type agentConn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *agentConn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// HandleAgentConn serves one agent connection until it drops.
func (h *Hub) HandleAgentConn(ws *websocket.Conn) {
	conn := &agentConn{id: uuid.NewString(), ws: ws}

	h.mu.Lock()
	h.agents[conn.id] = conn
	h.mu.Unlock()
	logger.Log.Infof("Agent connection %s established", conn.id)

	defer h.dropAgent(conn)

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			logger.Log.Infof("Agent connection %s closed: %v", conn.id, err)
			return
		}
		h.dispatchAgentMessage(conn, msg)
	}
}

func (h *Hub) dropAgent(conn *agentConn) {
	h.mu.Lock()
	deviceID := h.devices[conn.id]
	delete(h.devices, conn.id)
	delete(h.agents, conn.id)
	h.mu.Unlock()

	conn.ws.Close()

	if deviceID != "" {
		logger.Log.Infof("Device %s disconnected", deviceID)
		h.BroadcastPayload(MessageTypeDeviceDisconnected, DevicePresencePayload{DeviceID: deviceID})
	}
}

func (h *Hub) dispatchAgentMessage(conn *agentConn, msg Message) {
	switch msg.Type {
	case MessageTypeRegisterDevice:
		var p RegisterDevicePayload
		if err := msg.Decode(&p); err != nil || strings.TrimSpace(p.DeviceID) == "" {
			logger.Log.Warnf("Invalid RegisterDevice from %s: %v", conn.id, err)
			return
		}
		h.mu.Lock()
		h.devices[conn.id] = p.DeviceID
		h.mu.Unlock()
		logger.Log.Infof("Device %s registered on connection %s", p.DeviceID, conn.id)
		h.BroadcastPayload(MessageTypeDeviceConnected, DevicePresencePayload{DeviceID: p.DeviceID})

	case MessageTypeScanAcknowledgment:
		h.broadcast(msg)

	case MessageTypeComPortFound:
		var p ComPortFoundPayload
		if err := msg.Decode(&p); err == nil {
			h.ingest.PortFound(p)
		}
		h.broadcast(msg)

	case MessageTypeComPortScanResult:
		var p ComPortScanResultPayload
		if err := msg.Decode(&p); err == nil {
			h.ingest.ScanResult(p)
		}

	case MessageTypeComPortScanCompleted:
		h.broadcast(msg)

	case MessageTypeSmsReceived:
		var p SmsReceivedPayload
		if err := msg.Decode(&p); err != nil {
			logger.Log.Warnf("Invalid SmsReceived payload: %v", err)
			return
		}
		// Persist first so clients only ever see durable events; a
		// persistence failure is logged and must not block the fanout.
		h.ingest.SmsReceived(p)
		h.broadcast(msg)

	case MessageTypeCallHangupRecord:
		var p CallHangupPayload
		if err := msg.Decode(&p); err != nil {
			logger.Log.Warnf("Invalid CallHangupRecord payload: %v", err)
			return
		}
		h.ingest.CallHangup(p)
		h.broadcast(msg)

	case MessageTypeSmsSendResult:
		var p SmsSendResultPayload
		if err := msg.Decode(&p); err != nil {
			logger.Log.Warnf("Invalid SmsSendResult payload: %v", err)
			return
		}
		h.ingest.SendResult(p)
		h.broadcast(msg)

	default:
		logger.Log.Warnf("Unknown message type %q from agent connection %s", msg.Type, conn.id)
	}
}

// findAgent resolves the connection currently registered for deviceId.
func (h *Hub) findAgent(deviceID string) *agentConn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, dev := range h.devices {
		if strings.EqualFold(dev, deviceID) {
			return h.agents[connID]
		}
	}
	return nil
}

// GetConnectedDeviceIdsSnapshot lists currently registered device ids,
// distinct and sorted, case-insensitively deduplicated.
func (h *Hub) GetConnectedDeviceIdsSnapshot() []string {
	h.mu.RLock()
	seen := make(map[string]string)
	for _, dev := range h.devices {
		key := strings.ToUpper(dev)
		if _, ok := seen[key]; !ok {
			seen[key] = dev
		}
	}
	h.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for _, dev := range seen {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToUpper(out[i]) < strings.ToUpper(out[j])
	})
	return out
}

func (h *Hub) sendToDevice(deviceID string, msgType MessageType, payload interface{}) error {
	conn := h.findAgent(deviceID)
	if conn == nil {
		logger.Log.Warnf("No connected agent for device %s, dropping %s", deviceID, msgType)
		return fmt.Errorf("device %s is not connected", deviceID)
	}
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return conn.send(msg)
}

// RequestComPortScan asks one agent to scan its COM ports.
func (h *Hub) RequestComPortScan(deviceID string) error {
	return h.sendToDevice(deviceID, MessageTypeScanComPorts, ScanComPortsPayload{DeviceID: deviceID})
}

// RequestStartSmsReceiver asks one agent to start listening on ports.
func (h *Hub) RequestStartSmsReceiver(deviceID string, ports []ReceiverPortPayload) error {
	return h.sendToDevice(deviceID, MessageTypeStartSmsReceiver, StartSmsReceiverPayload{DeviceID: deviceID, Ports: ports})
}

func (h *Hub) RequestStopSmsReceiver(deviceID string) error {
	return h.sendToDevice(deviceID, MessageTypeStopSmsReceiver, StopSmsReceiverPayload{DeviceID: deviceID})
}

// RequestSendSms dispatches one send transaction to the agent that
// owns the port.
func (h *Hub) RequestSendSms(p SendSmsPayload) error {
	return h.sendToDevice(p.DeviceID, MessageTypeSendSms, p)
}

// BroadcastPayload fans a typed payload out to every browser client.
func (h *Hub) BroadcastPayload(msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		logger.Log.Errorf("Failed to build %s broadcast: %v", msgType, err)
		return
	}
	h.broadcast(msg)
}

// broadcast delivers msg to every client connection. Per-connection
// order is FIFO; a client whose buffer is full is dropped.
func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(h.clients, client)
			logger.Log.Warnf("Client send buffer full, unregistering")
		}
	}
}
