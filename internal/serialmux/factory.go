package serialmux

import (
	"go.bug.st/serial"
)

// realSerialPortFactory opens ports through go.bug.st/serial.
type realSerialPortFactory struct{}

func (realSerialPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	return serial.Open(path, mode)
}

// OpenSerialMux opens a port through the given factory and wraps it in a
// mux. Ports that support read timeouts are switched to blocking reads,
// which the monitor's reader loop relies on.
func OpenSerialMux(factory SerialPortFactory, path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	port, err := factory.Open(path, normalized)
	if err != nil {
		return nil, err
	}

	if tp, ok := port.(TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(serial.NoTimeout); err != nil {
			port.Close()
			return nil, err
		}
	}
	return NewSerialMux[SerialPorter](port), nil
}

// NewRealSerialMux creates a SerialMux instance backed by a real serial port
// at the given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	return OpenSerialMux(realSerialPortFactory{}, path, opts)
}
