//go:build mage

package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// statRoots are the trees whose packages Stats reports on.
var statRoots = []string{"cmd", "internal", "pkg"}

// pkgStats is the line count of one package directory.
type pkgStats struct {
	files int
	prod  int
	test  int
}

// Stats prints Go lines of code per package, split into production and
// test code.
func Stats() error {
	stats := make(map[string]*pkgStats)
	for _, root := range statRoots {
		if err := collectStats(root, stats); err != nil {
			return err
		}
	}

	dirs := make([]string, 0, len(stats))
	for dir := range stats {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "PACKAGE\tFILES\tPROD\tTEST\t")
	var total pkgStats
	for _, dir := range dirs {
		s := stats[dir]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t\n", dir, s.files, humanize.Comma(int64(s.prod)), humanize.Comma(int64(s.test)))
		total.files += s.files
		total.prod += s.prod
		total.test += s.test
	}
	fmt.Fprintf(w, "total\t%d\t%s\t%s\t\n", total.files, humanize.Comma(int64(total.prod)), humanize.Comma(int64(total.test)))
	return w.Flush()
}

func collectStats(root string, stats map[string]*pkgStats) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return fmt.Errorf("count %s: %w", path, err)
		}
		dir := filepath.ToSlash(filepath.Dir(path))
		s, ok := stats[dir]
		if !ok {
			s = &pkgStats{}
			stats[dir] = s
		}
		s.files++
		if strings.HasSuffix(path, "_test.go") {
			s.test += n
		} else {
			s.prod += n
		}
		return nil
	})
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
