//go:build !linux

package selinux

import "errors"

var errUnsupported = errors.New("selinux: not supported on this platform")

func GetFileCon(path string) (string, error) { return "", errUnsupported }

func SetFileCon(path, con string) error { return errUnsupported }

func RestoreSyscon(dir string) error { return errUnsupported }
