// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks that every message id passed to i18n.T exists in every
// locale file and reports ids no code uses.
//
//	go run ./tools/i18n-linter
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "active.en.yaml"
)

var callRe = regexp.MustCompile(`i18n\.T\("([^"]+)"`)

// report is the outcome of a lint run.
type report struct {
	Missing  map[string][]string // locale file -> ids used in code but absent
	Orphaned []string            // ids in the primary locale no code uses
}

func (r report) failed() bool {
	for _, ids := range r.Missing {
		if len(ids) > 0 {
			return true
		}
	}
	return false
}

func main() {
	r, err := lint(".", localesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "i18n-linter: %v\n", err)
		os.Exit(1)
	}
	files := make([]string, 0, len(r.Missing))
	for f := range r.Missing {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		for _, id := range r.Missing[f] {
			fmt.Printf("missing  %s: %s\n", f, id)
		}
	}
	for _, id := range r.Orphaned {
		fmt.Printf("orphaned %s: %s\n", primaryLocale, id)
	}
	if r.failed() {
		os.Exit(1)
	}
	fmt.Println("all translation files are consistent")
}

// lint compares the ids used below root with the locale files in dir.
func lint(root, dir string) (report, error) {
	used, err := usedKeys(root)
	if err != nil {
		return report{}, err
	}
	locales, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return report{}, err
	}
	if len(locales) == 0 {
		return report{}, fmt.Errorf("no locale files in %s", dir)
	}

	r := report{Missing: map[string][]string{}}
	for _, file := range locales {
		keys, err := localeKeys(file)
		if err != nil {
			return report{}, fmt.Errorf("%s: %w", file, err)
		}
		name := filepath.Base(file)
		r.Missing[name] = difference(used, keys)
		if name == primaryLocale {
			r.Orphaned = difference(keys, used)
		}
	}
	return r, nil
}

// usedKeys collects the literal ids passed to i18n.T in non-test Go files.
func usedKeys(root string) (map[string]struct{}, error) {
	keys := map[string]struct{}{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != root && (name == "tools" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(p, ".go") || strings.HasSuffix(p, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		for _, m := range callRe.FindAllStringSubmatch(string(content), -1) {
			keys[m[1]] = struct{}{}
		}
		return nil
	})
	return keys, err
}

// localeKeys returns the message ids of a locale file. Nested maps are
// flattened with '.' the way go-i18n reads them.
func localeKeys(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	keys := map[string]struct{}{}
	flatten("", data, keys)
	return keys, nil
}

func flatten(prefix string, node any, keys map[string]struct{}) {
	m, ok := node.(map[string]any)
	if !ok {
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
		return
	}
	for k, v := range m {
		if prefix != "" {
			k = prefix + "." + k
		}
		flatten(k, v, keys)
	}
}

// difference returns the sorted ids of a that are not in b.
func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
