// Package mountmode classifies the device's module mount mode from the
// installer-owned marker file.
package mountmode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dohr-michael/rootd/internal/privfs"
)

// Mode is the module mount mode.
type Mode string

const (
	// ModeMagic is the bind-mount default, kept for backwards compatibility.
	ModeMagic Mode = "magic"
	// ModeMetaModule delegates mounting to the metamodule's own mount script.
	ModeMetaModule Mode = "metamodule"
	// ModeDisabled skips all module mounts (lite mode).
	ModeDisabled Mode = "disabled"
)

// Prober queries the mount mode marker through a privileged reader.
// It is stateless and safe for concurrent use.
type Prober struct {
	reader     privfs.Reader
	markerPath string
	litePath   string
}

// New returns a Prober reading markerPath through r. litePath is the legacy
// lite mode marker; pass "" to disable the legacy check.
func New(r privfs.Reader, markerPath, litePath string) *Prober {
	return &Prober{reader: r, markerPath: markerPath, litePath: litePath}
}

// IsMetaModule reports whether the marker file exists and its trimmed
// contents equal "metamodule". Every failure (absent marker, unavailable
// channel, permission denial, I/O error) yields false; the caller cannot
// distinguish "not metamodule" from "could not determine".
func (p *Prober) IsMetaModule(ctx context.Context) bool {
	ok, err := p.reader.Exists(ctx, p.markerPath)
	if err != nil {
		slog.Debug("mountmode: exists check failed", "path", p.markerPath, "error", err)
		return false
	}
	if !ok {
		return false
	}

	data, err := p.reader.ReadAll(ctx, p.markerPath)
	if err != nil {
		slog.Debug("mountmode: read failed", "path", p.markerPath, "error", err)
		return false
	}
	return Mode(strings.TrimSpace(string(data))) == ModeMetaModule
}

// Detect returns the full mount mode classification. Recognized marker
// contents map to themselves; an existing legacy lite mode marker maps to
// disabled; anything else, including every read failure, is magic, the
// backwards-compatible default.
func (p *Prober) Detect(ctx context.Context) Mode {
	if ok, err := p.reader.Exists(ctx, p.markerPath); err == nil && ok {
		if data, err := p.reader.ReadAll(ctx, p.markerPath); err == nil {
			switch mode := Mode(strings.TrimSpace(string(data))); mode {
			case ModeMagic, ModeMetaModule, ModeDisabled:
				return mode
			}
		}
	}

	if p.litePath != "" {
		if ok, err := p.reader.Exists(ctx, p.litePath); err == nil && ok {
			return ModeDisabled
		}
	}

	return ModeMagic
}
