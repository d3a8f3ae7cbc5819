// Package catalog loads the immutable lookup tables the receiver starts
// with: the capcode dictionary, the ignore list, the glob filter and the
// sender classification sets.
//
// Text files use the classic receiver formats ("capcode,name" lines
// for dictionaries, comma separated capcodes for sets, one glob per line for
// filters, '#' comments). Files ending in .yaml or .yml are read as YAML: a
// mapping for dictionaries and a sequence for sets and filters.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/classify"
)

// Paths lists the catalog files to load. Empty paths are skipped.
type Paths struct {
	Capcodes  string
	Ignore    string
	Filter    string
	Police    string
	Fire      string
	Ambulance string
	Test      string
}

// Catalog holds the loaded tables.
type Catalog struct {
	Directory classify.Directory
	Ignore    classify.CapcodeSet
	Filters   []string
	Senders   classify.SenderClassifier
}

// Filter builds the capcode filter from the glob list and ignore set.
func (c Catalog) Filter() *classify.CapcodeFilter {
	return classify.NewCapcodeFilter(c.Filters, c.Ignore)
}

// Load reads every configured file. A missing file is logged at info level
// and an unreadable one as a warning; either leaves its table empty and the
// receiver still starts.
func Load(paths Paths, logger zerolog.Logger) Catalog {
	var cat Catalog

	if paths.Capcodes != "" {
		dir, err := LoadDirectory(paths.Capcodes)
		if err != nil {
			failure(logger, err).Str("file", paths.Capcodes).Msg("capcode dictionary not loaded")
		}
		cat.Directory = dir
		logger.Info().Int("records", len(dir)).Msg("capcodes loaded")
	}

	if paths.Ignore != "" {
		ignore, err := LoadDirectory(paths.Ignore)
		if err != nil {
			failure(logger, err).Str("file", paths.Ignore).Msg("ignore list not loaded")
		}
		cat.Ignore = make(classify.CapcodeSet, len(ignore))
		for capcode := range ignore {
			cat.Ignore[capcode] = struct{}{}
		}
		logger.Info().Int("records", len(cat.Ignore)).Msg("capcodes ignore loaded")
	}

	if paths.Filter != "" {
		filters, err := LoadFilter(paths.Filter)
		if err != nil {
			failure(logger, err).Str("file", paths.Filter).Msg("filter not loaded")
		}
		cat.Filters = filters
		logger.Info().Int("patterns", len(filters)).Msg("filter loaded")
	}

	loadSet := func(name, path string) classify.CapcodeSet {
		if path == "" {
			return nil
		}
		set, err := LoadCapcodeSet(path)
		if err != nil {
			failure(logger, err).Str("file", path).Str("class", name).Msg("capcode class not loaded")
		}
		logger.Info().Int("capcodes", len(set)).Str("class", name).Msg("capcode class loaded")
		return set
	}
	cat.Senders = classify.SenderClassifier{
		Police:    loadSet("police", paths.Police),
		Fire:      loadSet("fire", paths.Fire),
		Ambulance: loadSet("ambulance", paths.Ambulance),
		Test:      loadSet("test", paths.Test),
	}

	return cat
}

func failure(logger zerolog.Logger, err error) *zerolog.Event {
	if errors.Is(err, fs.ErrNotExist) {
		return logger.Info().Err(err)
	}
	return logger.Warn().Err(err)
}

// LoadDirectory reads a capcode to name dictionary.
func LoadDirectory(path string) (classify.Directory, error) {
	dir := make(classify.Directory)
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return dir, err
		}
		if err := yaml.Unmarshal(data, &dir); err != nil {
			return make(classify.Directory), fmt.Errorf("parse %s: %w", path, err)
		}
		return dir, nil
	}

	err := eachLine(path, func(line string) {
		capcode, name, ok := strings.Cut(line, ",")
		if !ok {
			return
		}
		if capcode = strings.TrimSpace(capcode); capcode != "" {
			dir[capcode] = strings.TrimSpace(name)
		}
	})
	return dir, err
}

// LoadCapcodeSet reads a capcode classification set.
func LoadCapcodeSet(path string) (classify.CapcodeSet, error) {
	if isYAML(path) {
		var codes []string
		data, err := os.ReadFile(path)
		if err != nil {
			return classify.NewCapcodeSet(), err
		}
		if err := yaml.Unmarshal(data, &codes); err != nil {
			return classify.NewCapcodeSet(), fmt.Errorf("parse %s: %w", path, err)
		}
		return classify.NewCapcodeSet(codes...), nil
	}

	set := classify.NewCapcodeSet()
	err := eachLine(path, func(line string) {
		for _, capcode := range strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}) {
			set[capcode] = struct{}{}
		}
	})
	return set, err
}

// LoadFilter reads glob patterns. Lines starting with '#' or ';' are
// comments.
func LoadFilter(path string) ([]string, error) {
	if isYAML(path) {
		var patterns []string
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &patterns); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return patterns, nil
	}

	var patterns []string
	err := eachLine(path, func(line string) {
		if strings.HasPrefix(line, ";") {
			return
		}
		patterns = append(patterns, line)
	})
	return patterns, err
}

// eachLine calls fn for every trimmed, non-empty, non-comment line.
func eachLine(path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
