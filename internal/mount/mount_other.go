//go:build !linux

package mount

import "errors"

var errUnsupported = errors.New("mounting requires linux")

func Overlay(target string, lowerdirs []string, upperdir, workdir string) error {
	return errUnsupported
}

func Bind(from, to string) error {
	return errUnsupported
}

func Tmpfs(dest string) error {
	return errUnsupported
}
