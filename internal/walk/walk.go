// Package walk lists reviewable files under a directory for local mode,
// honoring gitignore rules.
package walk

import (
	"sort"
	"strings"

	"github.com/boyter/gocodewalker"
)

// Files returns the relative paths of regular files under root, sorted for
// deterministic review order. Hidden VCS internals are excluded.
func Files(root string) ([]string, error) {
	fileListQueue := make(chan *gocodewalker.File, 100)

	walker := gocodewalker.NewFileWalker(root, fileListQueue)
	walker.ExcludeDirectory = []string{".git"}

	errChan := make(chan error, 1)
	go func() {
		errChan <- walker.Start()
	}()

	var files []string
	for f := range fileListQueue {
		files = append(files, stripRoot(root, f.Location))
	}
	if err := <-errChan; err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func stripRoot(root, location string) string {
	if root == "." || root == "./" {
		return strings.TrimPrefix(location, "./")
	}
	return strings.TrimPrefix(strings.TrimPrefix(location, root), "/")
}
