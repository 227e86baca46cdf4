// Command detect-sensor lists serial ports and flags any that match the
// sensor's USB vendor and product IDs.
package main

import (
	"fmt"
	"log"

	"go.bug.st/serial/enumerator"

	"github.com/banshee-data/radariq/internal/discovery"
)

func main() {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		log.Fatalf("failed to enumerate serial ports: %v", err)
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return
	}

	matches, err := discovery.FindPorts()
	if err != nil {
		log.Fatalf("failed to scan for sensors: %v", err)
	}
	matched := make(map[string]bool, len(matches))
	for _, name := range matches {
		matched[name] = true
	}

	for _, port := range ports {
		label := ""
		if port.IsUSB {
			label = fmt.Sprintf(" usb %s:%s", port.VID, port.PID)
			if port.SerialNumber != "" {
				label += " serial " + port.SerialNumber
			}
		}
		if matched[port.Name] {
			label += "  <- sensor"
		}
		fmt.Printf("%s%s\n", port.Name, label)
	}

	if len(matches) == 0 {
		fmt.Println("no sensor detected")
	}
}
