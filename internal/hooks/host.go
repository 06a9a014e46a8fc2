package hooks

import (
	"context"
	"encoding/json"
	"log/slog"

	extism "github.com/extism/go-sdk"

	"github.com/dohr-michael/rootd/internal/events"
)

// hostLogMessage is the JSON structure for rootd.log calls.
type hostLogMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// hostEmitEvent is the JSON structure for rootd.emit_event calls.
type hostEmitEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// hostFunctions builds the host API exposed to a module's hooks.
// All functions live in the "rootd" namespace.
func hostFunctions(bus *events.Bus, module string) []extism.HostFunction {
	var fns []extism.HostFunction

	// rootd.log — structured logging from the hook
	logFn := extism.NewHostFunctionWithStack(
		"log",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			input, err := p.ReadBytes(stack[0])
			if err != nil {
				slog.Error("host: failed to read log input", "error", err)
				return
			}
			var msg hostLogMessage
			if err := json.Unmarshal(input, &msg); err != nil {
				slog.Warn("host: invalid log message", "raw", string(input))
				return
			}
			switch msg.Level {
			case "debug":
				slog.Debug("hook", "module", module, "msg", msg.Message)
			case "warn":
				slog.Warn("hook", "module", module, "msg", msg.Message)
			case "error":
				slog.Error("hook", "module", module, "msg", msg.Message)
			default:
				slog.Info("hook", "module", module, "msg", msg.Message)
			}
		},
		[]extism.ValueType{extism.ValueTypePTR},
		nil,
	)
	logFn.SetNamespace("rootd")
	fns = append(fns, logFn)

	// rootd.emit_event — publish an event on the bus
	emitFn := extism.NewHostFunctionWithStack(
		"emit_event",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			input, err := p.ReadBytes(stack[0])
			if err != nil {
				slog.Error("host: emit_event read", "error", err)
				return
			}
			var ev hostEmitEvent
			if err := json.Unmarshal(input, &ev); err != nil {
				slog.Error("host: emit_event parse", "error", err)
				return
			}
			if ev.Payload == nil {
				ev.Payload = map[string]any{}
			}
			ev.Payload["module"] = module
			bus.Publish(events.NewEvent(events.EventType(ev.Type), events.SourceHook, ev.Payload))
		},
		[]extism.ValueType{extism.ValueTypePTR},
		nil,
	)
	emitFn.SetNamespace("rootd")
	fns = append(fns, emitFn)

	return fns
}
