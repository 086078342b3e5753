// Package busenum lists candidate I²C bus character devices
// (/dev/i2c-N) using udev, the same device-discovery library the teacher
// wires in for its own hardware-presence discovery. This is bus-node discovery
// only: it reports which /dev/i2c-* files exist and what adapter backs
// them. It never opens a bus, never talks DDC/CI, and never identifies a
// monitor — that enumeration is explicitly out of scope (spec.md §1).
package busenum

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jochenvg/go-udev"
)

// Bus describes one /dev/i2c-N node discovered via udev.
type Bus struct {
	Number      int
	DevicePath  string
	AdapterName string
}

// List enumerates every i2c-dev character device node on the system.
func List() ([]Bus, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()
	if err := enum.AddMatchSubsystem("i2c-dev"); err != nil {
		return nil, err
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, err
	}

	var buses []Bus
	for _, d := range devices {
		devnode := d.Devnode()
		if devnode == "" {
			continue
		}

		num, ok := busNumber(devnode)
		if !ok {
			continue
		}

		adapter := ""
		if parent := d.ParentWithSubsystemDevtype("i2c", ""); parent != nil {
			adapter = parent.Sysname()
		}

		buses = append(buses, Bus{Number: num, DevicePath: devnode, AdapterName: adapter})
	}

	sort.Slice(buses, func(i, j int) bool { return buses[i].Number < buses[j].Number })
	return buses, nil
}

func busNumber(devnode string) (int, bool) {
	const prefix = "/dev/i2c-"
	if !strings.HasPrefix(devnode, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(devnode, prefix))
	if err != nil {
		return 0, false
	}
	return n, true
}
