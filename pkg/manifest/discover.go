package manifest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// DefaultPattern matches manifest files below a directory.
const DefaultPattern = "**/*.md"

// Discover returns the manifest files under root matching DefaultPattern,
// sorted by path. A root that is a file is returned as the only result.
func Discover(root string) ([]string, error) {
	return DiscoverPattern(root, DefaultPattern)
}

// DiscoverPattern is Discover with a custom doublestar pattern.
func DiscoverPattern(root, pattern string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", root)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "invalid manifest pattern %q", pattern)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(root, filepath.FromSlash(m)))
	}
	sort.Strings(paths)
	return paths, nil
}
