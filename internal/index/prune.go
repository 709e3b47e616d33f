package index

import (
	"context"
	"fmt"
	"os"
)

// Prune deletes records whose source file no longer exists and returns the
// removed stems. Cached completions are left alone.
func (s *Store) Prune(ctx context.Context) ([]string, error) {
	recs, err := s.Files(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, rec := range recs {
		if _, err := os.Stat(rec.SourcePath); err == nil || !os.IsNotExist(err) {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE stem = ?`, rec.Stem); err != nil {
			return removed, fmt.Errorf("prune %s: %w", rec.Stem, err)
		}
		removed = append(removed, rec.Stem)
	}
	return removed, nil
}
