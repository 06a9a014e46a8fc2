package pkgstore

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Entry is one package from the system package list.
type Entry struct {
	Name       string
	UID        int
	Debuggable bool
	DataDir    string
	SEInfo     string
}

// ParsePackagesList parses the packages.list format:
//
//	<name> <uid> <debuggable> <dataDir> <seinfo> <gids...>
//
// Malformed lines are skipped; a line needs at least name and uid.
func ParsePackagesList(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		uid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}

		e := Entry{Name: fields[0], UID: uid}
		if len(fields) > 2 {
			e.Debuggable = fields[2] == "1"
		}
		if len(fields) > 3 {
			e.DataDir = fields[3]
		}
		if len(fields) > 4 {
			e.SEInfo = fields[4]
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan packages list: %w", err)
	}
	return entries, nil
}
