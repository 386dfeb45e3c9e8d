package delay

import "context"

// SetEnabled shows or hides every item of source placed in scene. Empty scene
// or source names make it a no-op. The first failing call aborts and is
// returned; callers that treat visibility as best-effort log and drop it.
func SetEnabled(ctx context.Context, s *Session, scene, source string, enabled bool) error {
	if scene == "" || source == "" {
		return nil
	}
	items, err := s.sceneItems(ctx, scene)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.SourceName != source {
			continue
		}
		if err := s.setItemEnabled(ctx, scene, item.ID, enabled); err != nil {
			return err
		}
	}
	return nil
}

// IsEnabled reports the flag of the first item of source in scene. A source
// placed several times with different flags is reported by its first item
// only. Missing items and empty names report false.
func IsEnabled(ctx context.Context, s *Session, scene, source string) (bool, error) {
	if scene == "" || source == "" {
		return false, nil
	}
	items, err := s.sceneItems(ctx, scene)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.SourceName == source {
			return item.Enabled, nil
		}
	}
	return false, nil
}
