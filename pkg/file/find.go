package file

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var subtitleExts = map[string]struct{}{
	".srt":    {},
	".vtt":    {},
	".webvtt": {},
}

func IsSubtitleFile(path string) bool {
	_, ok := subtitleExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// FindSubtitleFiles walks dir and returns subtitle files modified after
// startTime, sorted by path. A zero startTime matches every file.
func FindSubtitleFiles(dir string, startTime time.Time) ([]string, error) {
	var found []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsSubtitleFile(path) {
			return nil
		}
		if !startTime.IsZero() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if !info.ModTime().After(startTime) {
				return nil
			}
		}
		found = append(found, path)
		return nil
	})
	sort.Strings(found)
	return found, err
}

// Stem returns the file name without directory or extensions, keeping only
// the part before the first dot: "/a/Movie.en.srt" -> "Movie".
func Stem(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}
