package modem

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport is an established bidirectional byte stream to a modem.
// Production transports are serial ports; tests use in-memory fakes.
type Transport interface {
	io.ReadWriteCloser
	SetReadTimeout(d time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Dialer opens a Transport to a modem on a named port.
type Dialer interface {
	Dial(portName string, baudRate int) (Transport, error)
}

// PortEnumerator lists the serial ports visible to the OS, in
// enumeration order.
type PortEnumerator func() ([]string, error)

// SerialDialer opens ports via go.bug.st/serial, 8-N-1 with DTR and
// RTS asserted.
type SerialDialer struct{}

func (SerialDialer) Dial(portName string, baudRate int) (Transport, error) {
	if portName == "" {
		return nil, fmt.Errorf("serial port name is required")
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", portName, err)
	}
	_ = p.SetDTR(true)
	_ = p.SetRTS(true)
	return p, nil
}

// ListPorts enumerates serial ports via go.bug.st/serial.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
