package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bhandras/delaydeck/internal/delay"
	"github.com/bhandras/delaydeck/pkg/logger"
)

// Setting keys.
const (
	KeyPort        = "obs:port"
	KeyPassword    = "obs:password"
	KeyDelayInput  = "obs:delayInput"
	KeyBridgeInput = "obs:bridgeInput"
	KeyRecordScene = "obs:recordScene"
	KeyDelayScene  = "obs:delayScene"
	KeyDelaySec    = "obs:delaySec"
)

// DefaultPort is the obs-websocket default port.
const DefaultPort = 4455

// Settings is everything the operator configures in the panel.
type Settings struct {
	Port     int               `json:"port"`
	Password string            `json:"password,omitempty"`
	Delay    delay.DelayConfig `json:"delay"`
}

// DefaultSettings returns the settings used before anything is saved.
func DefaultSettings() Settings {
	return Settings{
		Port:  DefaultPort,
		Delay: delay.DefaultDelayConfig(),
	}
}

// Validate checks the port and the delay.
func (s Settings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	return s.Delay.Validate()
}

// LoadSettings reads the stored settings over DefaultSettings. Stored values
// that do not parse are skipped with a warning.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	out := DefaultSettings()

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings WHERE key LIKE 'obs:%'")
	if err != nil {
		return out, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return out, fmt.Errorf("load settings: %w", err)
		}
		stored[k] = v
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("load settings: %w", err)
	}

	if v, ok := stored[KeyPort]; ok {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
			out.Port = port
		} else {
			logger.Warnf("storage: ignoring stored port %q", v)
		}
	}
	if v, ok := stored[KeyPassword]; ok && v != "" {
		pw, err := open(v, s.key)
		if err != nil {
			logger.Warnf("storage: ignoring stored password: %v", err)
		} else {
			out.Password = pw
		}
	}
	if v, ok := stored[KeyDelaySec]; ok {
		sec, err := strconv.Atoi(v)
		if err == nil {
			err = delay.ValidateDelaySeconds(sec)
		}
		if err != nil {
			logger.Warnf("storage: ignoring stored delay %q", v)
		} else {
			out.Delay.DelaySeconds = sec
		}
	}
	out.Delay.DelayInput = stored[KeyDelayInput]
	out.Delay.BridgeInput = stored[KeyBridgeInput]
	out.Delay.RecordScene = stored[KeyRecordScene]
	out.Delay.DelayScene = stored[KeyDelayScene]

	return out, nil
}

// SaveSettings validates and writes every setting in one transaction. The
// password is sealed with the store's key; an empty password is stored
// empty.
func (s *Store) SaveSettings(ctx context.Context, in Settings) error {
	if err := in.Validate(); err != nil {
		return err
	}

	password := ""
	if in.Password != "" {
		sealed, err := seal(in.Password, s.key)
		if err != nil {
			return err
		}
		password = sealed
	}

	values := []struct{ key, value string }{
		{KeyPort, strconv.Itoa(in.Port)},
		{KeyPassword, password},
		{KeyDelayInput, in.Delay.DelayInput},
		{KeyBridgeInput, in.Delay.BridgeInput},
		{KeyRecordScene, in.Delay.RecordScene},
		{KeyDelayScene, in.Delay.DelayScene},
		{KeyDelaySec, strconv.Itoa(in.Delay.DelaySeconds)},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	for _, kv := range values {
		if err := setTx(ctx, tx, kv.key, kv.value); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
