package output

import (
	"path/filepath"
	"strings"

	"github.com/disiqueira/gotree/v3"
)

// VisualFileTree arranges labeled files below their directories, relative to a common root.
type VisualFileTree struct {
	tree gotree.Tree
	dirs map[string]gotree.Tree
}

func NewVisualFileTree(rootLabel string) VisualFileTree {
	return VisualFileTree{tree: gotree.New(rootLabel), dirs: make(map[string]gotree.Tree)}
}

func (t VisualFileTree) getDir(dirPath string) (dir gotree.Tree) {
	if dirPath == "." {
		return t.tree
	}
	dir = t.dirs[dirPath]
	if dir == nil {
		parentDir := t.getDir(filepath.Dir(dirPath))
		dir = parentDir.Add(filepath.Base(dirPath) + string(filepath.Separator))
		t.dirs[dirPath] = dir
	}
	return
}

// InsertPath adds a node with the given label in the directory of relPath, which must be relative.
func (t VisualFileTree) InsertPath(relPath string, label string) {
	dir := t.getDir(filepath.Dir(filepath.Clean(relPath)))
	dir.Add(label)
}

func (t VisualFileTree) Render() string {
	return strings.TrimSuffix(t.tree.Print(), "\n")
}

// CommonDir yields the deepest directory containing all given absolute file paths.
func CommonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	common := filepath.Dir(paths[0])
	for _, path := range paths[1:] {
		for !contains(common, path) {
			parent := filepath.Dir(common)
			if parent == common {
				break
			}
			common = parent
		}
	}
	return common
}

func contains(dir string, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
