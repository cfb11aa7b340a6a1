package monitor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultPowerSupplyRoot = "/sys/class/power_supply"

// findBatteryPath locates the first battery device under the power supply
// sysfs root. Returns empty when the host has no battery, which is the
// normal case for mains powered deployments.
func findBatteryPath(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		devicePath := filepath.Join(root, entry.Name())
		typeRaw, err := os.ReadFile(filepath.Join(devicePath, "type"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(typeRaw)) == "Battery" {
			return devicePath
		}
	}
	return ""
}

// readBatteryPercent reads the charge percentage of a battery device.
// Returns -1 when the device path is empty or unreadable.
func readBatteryPercent(devicePath string) float64 {
	if devicePath == "" {
		return -1
	}
	raw, err := os.ReadFile(filepath.Join(devicePath, "capacity"))
	if err != nil {
		return -1
	}
	percent, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil || percent < 0 || percent > 100 {
		return -1
	}
	return percent
}
