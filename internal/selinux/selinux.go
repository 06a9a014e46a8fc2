// Package selinux reads and writes SELinux file contexts through the
// security.selinux extended attribute.
package selinux

const (
	// SystemCon is the context applied to module content served to
	// the system.
	SystemCon = "u:object_r:system_file:s0"
	// AdbCon is the context for files living under /data/adb.
	AdbCon = "u:object_r:adb_data_file:s0"

	xattrName = "security.selinux"
)
