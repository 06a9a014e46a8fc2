package config

import "time"

// Config is the root configuration for rootd.
type Config struct {
	Broker BrokerConfig `json:"broker"`
	Privfs PrivfsConfig `json:"privfs"`
	Events EventsConfig `json:"events"`
	UIDMon UIDMonConfig `json:"uid_monitor"`
	Stages StagesConfig `json:"stages"`
}

// BrokerConfig holds the privileged broker settings.
type BrokerConfig struct {
	Socket string   `json:"socket,omitempty"` // unix socket path (default: <data>/rootd.sock)
	Roots  []string `json:"roots,omitempty"`  // filesystem roots the broker may serve (default: [<base>])
}

// PrivfsConfig configures the shell-backed elevated reader.
type PrivfsConfig struct {
	Elevator string   `json:"elevator,omitempty"` // elevation binary (default: su)
	Timeout  Duration `json:"timeout,omitempty"`  // per-call timeout for shell reads
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// UIDMonConfig configures the package list monitor.
type UIDMonConfig struct {
	SystemDir     string   `json:"system_dir,omitempty"`     // directory holding packages.list (default: /data/system)
	Debounce      Duration `json:"debounce,omitempty"`       // settle time after a rename burst
	ReconcileCron string   `json:"reconcile_cron,omitempty"` // periodic full refresh (default: */30 * * * *)
}

// StagesConfig configures boot stage script execution.
type StagesConfig struct {
	ScriptTimeout Duration `json:"script_timeout,omitempty"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
