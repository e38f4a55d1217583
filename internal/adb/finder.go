package adb

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
)

// FindADB attempts to locate the ADB executable. A preferred path may name
// the binary itself or a directory containing it.
func FindADB(preferredPath string) (string, error) {
	bin := "adb"
	if runtime.GOOS == "windows" {
		bin = "adb.exe"
	}

	if preferredPath != "" {
		candidates := []string{
			preferredPath,
			filepath.Join(preferredPath, bin),
			filepath.Join(preferredPath, "platform-tools", bin),
		}
		for _, p := range candidates {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
	}

	if p, err := exec.LookPath(bin); err == nil {
		return p, nil
	}

	var commonPaths []string
	if sdk := os.Getenv("ANDROID_HOME"); sdk != "" {
		commonPaths = append(commonPaths, filepath.Join(sdk, "platform-tools", bin))
	}
	if home, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			commonPaths = append(commonPaths, filepath.Join(home, "AppData", "Local", "Android", "Sdk", "platform-tools", bin))
		case "darwin":
			commonPaths = append(commonPaths, filepath.Join(home, "Library", "Android", "sdk", "platform-tools", bin))
		default:
			commonPaths = append(commonPaths, filepath.Join(home, "Android", "Sdk", "platform-tools", bin))
		}
	}
	commonPaths = append(commonPaths, "/usr/bin/adb", "/usr/local/bin/adb", "/opt/homebrew/bin/adb")

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", apperr.Config("adb.FindADB", "adb not found, please specify adb_path in config")
}

// Device is one line of `adb devices`
type Device struct {
	Serial string
	State  string
}

// Devices lists the devices known to the adb server
func (c *Controller) Devices(ctx context.Context) ([]Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	output, err := c.exec(ctx, "devices")
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDevice, "adb.Devices", "list devices")
	}
	return parseDevices(string(output)), nil
}

func parseDevices(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		devices = append(devices, Device{Serial: parts[0], State: parts[1]})
	}
	return devices
}

// ConnectOptions selects the device ConnectADB attaches to
type ConnectOptions struct {
	ADBPath string // Preferred adb binary or SDK directory
	Serial  string // Empty picks the first ready device
	Timeout time.Duration
	Network bool // Run `adb connect` for host:port serials
}

// ConnectADB finds adb, picks a device when no serial is given and connects
func ConnectADB(ctx context.Context, opts ConnectOptions) (*Controller, error) {
	path, err := FindADB(opts.ADBPath)
	if err != nil {
		return nil, err
	}

	ctrl := NewController(path, opts.Serial).WithTimeout(opts.Timeout).WithNetworkConnect(opts.Network)
	if opts.Serial == "" {
		devices, err := ctrl.Devices(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range devices {
			if d.State == "device" {
				ctrl.serial = d.Serial
				break
			}
		}
		if ctrl.serial == "" {
			return nil, apperr.Device("adb.ConnectADB", "no attached device in state \"device\"")
		}
	}

	if err := ctrl.Connect(ctx); err != nil {
		return nil, err
	}
	return ctrl, nil
}
