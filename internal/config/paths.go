package config

import (
	"os"
	"path/filepath"
)

// BasePath returns the privileged data root.
// It uses $ROOTD_BASE if set, otherwise defaults to /data/adb.
func BasePath() string {
	if v := os.Getenv("ROOTD_BASE"); v != "" {
		return v
	}
	return "/data/adb"
}

// DataPath returns the directory for rootd's own state.
func DataPath() string {
	return filepath.Join(BasePath(), "rootd")
}

// ConfigPath returns the path to the rootd config file.
func ConfigPath() string {
	return filepath.Join(DataPath(), "config.jsonc")
}

// DotenvPath returns the path to the rootd .env file.
func DotenvPath() string {
	return filepath.Join(DataPath(), ".env")
}

// SocketPath returns the broker's unix socket path.
func SocketPath() string {
	return filepath.Join(DataPath(), "rootd.sock")
}

// HeartbeatPath returns the broker heartbeat file path.
func HeartbeatPath() string {
	return filepath.Join(DataPath(), "heartbeat.json")
}

// PackagesDBPath returns the sqlite package store path.
func PackagesDBPath() string {
	return filepath.Join(DataPath(), "packages.db")
}

// AgeKeyPath returns the age identity file used for superkey storage.
func AgeKeyPath() string {
	return filepath.Join(DataPath(), ".age-key")
}

// SuperkeyPath returns the encrypted superkey file path.
func SuperkeyPath() string {
	return filepath.Join(DataPath(), "superkey")
}

// MountModePath returns the mount mode marker file path.
// The marker is written by the installer, never by rootd.
func MountModePath() string {
	return filepath.Join(BasePath(), ".mount_mode")
}

// LiteModePath returns the legacy lite mode marker path.
func LiteModePath() string {
	return filepath.Join(BasePath(), ".litemode")
}

// ForceOverlayPath returns the marker that forces overlayfs mounting.
func ForceOverlayPath() string {
	return filepath.Join(BasePath(), ".overlayfs_enable")
}

// ModuleDir returns the live module directory.
func ModuleDir() string {
	return filepath.Join(BasePath(), "modules")
}

// ModuleUpdateDir returns the staging directory for updated modules.
func ModuleUpdateDir() string {
	return filepath.Join(BasePath(), "modules_update")
}
