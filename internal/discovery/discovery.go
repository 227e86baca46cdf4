// Package discovery locates attached RadarIQ sensors by their USB vendor
// and product IDs.
package discovery

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USB identifiers of the RadarIQ-M1 serial interface.
const (
	VendorID  = "16D0"
	ProductID = "0ED5"
)

var ErrNotFound = errors.New("no radar sensor found")

// lister enumerates serial ports; swapped in tests.
var lister = enumerator.GetDetailedPortsList

// FindPorts returns the device paths of all attached sensors.
func FindPorts() ([]string, error) {
	ports, err := lister()
	if err != nil {
		return nil, fmt.Errorf("enumerating serial ports: %w", err)
	}

	var found []string
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		if strings.EqualFold(port.VID, VendorID) && strings.EqualFold(port.PID, ProductID) {
			found = append(found, port.Name)
		}
	}
	return found, nil
}

// FindPort returns the device path of the first attached sensor, or
// ErrNotFound when none is connected.
func FindPort() (string, error) {
	ports, err := FindPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNotFound
	}
	return ports[0], nil
}
