package delay

import (
	"context"
	"maps"
	"time"

	"github.com/bhandras/delaydeck/pkg/logger"
)

// PulseSettle is how long the cleared path stays in place before the
// original is written back.
const PulseSettle = 300 * time.Millisecond

// PathKey is a settings key that holds a media file path.
type PathKey string

const (
	PathKeyLocalFile PathKey = "local_file"
	PathKeyFile      PathKey = "file"
	PathKeyPath      PathKey = "path"
)

// pathKeys is the probe order; the first key present wins.
var pathKeys = [...]PathKey{PathKeyLocalFile, PathKeyFile, PathKeyPath}

// FindPathKey returns the first recognized path key present in settings.
func FindPathKey(settings map[string]any) (PathKey, bool) {
	for _, k := range pathKeys {
		if _, ok := settings[string(k)]; ok {
			return k, true
		}
	}
	return "", false
}

// Pulse restarts a media input by clearing its path, waiting PulseSettle and
// restoring it. Media players react to a changed path, not to a restart
// request, so the switcher must observe two distinct values. Inputs without a
// recognized path key are left untouched.
func Pulse(ctx context.Context, s *Session, clock Clock, input string) error {
	if input == "" {
		return nil
	}
	settings, err := s.inputSettings(ctx, input)
	if err != nil {
		return err
	}
	key, ok := FindPathKey(settings)
	if !ok {
		logger.Debugf("delay: %q has no path setting, not pulsing", input)
		return nil
	}
	original := settings[string(key)]

	cleared := maps.Clone(settings)
	cleared[string(key)] = ""
	if err := s.setInputSettings(ctx, input, cleared); err != nil {
		return err
	}

	// Once cleared, the path is always restored.
	ctx = context.WithoutCancel(ctx)
	if err := clock.Sleep(ctx, PulseSettle); err != nil {
		return err
	}

	restored := maps.Clone(settings)
	restored[string(key)] = original
	return s.setInputSettings(ctx, input, restored)
}
