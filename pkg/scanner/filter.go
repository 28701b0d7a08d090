package scanner

import (
	"path/filepath"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/reapertools/clonereaper/pkg/logger"
)

// exprEnv is the environment exposed to filter expressions.
type exprEnv struct {
	Name     string
	Ext      string
	Path     string
	Size     int64
	AgeHours float64
}

type compiledFilter struct {
	text    string
	program *vm.Program
}

// Filter decides whether a scanned file is excluded from duplicate
// consideration, either by an ignore pattern on its path or by a user
// filter expression matching its attributes.
type Filter struct {
	filters []compiledFilter
	ignores []*regexp2.Regexp
	log     *logrus.Entry
}

// NewFilter compiles filter expressions and ignore patterns. Patterns are
// case-insensitive regexes matched against the full path.
func NewFilter(filters []string, ignorePatterns []string) (*Filter, error) {
	f := &Filter{log: logger.GetLogger("filter")}

	for _, text := range filters {
		program, err := expr.Compile(text, expr.Env(exprEnv{}), expr.AsBool())
		if err != nil {
			return nil, errors.Wrapf(err, "compile filter: %q", text)
		}
		f.filters = append(f.filters, compiledFilter{text: text, program: program})
	}

	for _, pattern := range ignorePatterns {
		re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
		if err != nil {
			return nil, errors.Wrapf(err, "compile ignore pattern: %q", pattern)
		}
		f.ignores = append(f.ignores, re)
	}

	return f, nil
}

// Excluded reports whether file should be dropped from the scan. Evaluation
// failures are isolated to the file and treated as no-match.
func (f *Filter) Excluded(file File) bool {
	for _, re := range f.ignores {
		match, err := re.MatchString(file.Path)
		if err != nil {
			f.log.WithError(err).Warnf("Ignore pattern failed for: %q", file.Path)
			continue
		}
		if match {
			f.log.Tracef("Ignoring path: %q", file.Path)
			return true
		}
	}

	if len(f.filters) == 0 {
		return false
	}

	env := exprEnv{
		Name:     filepath.Base(file.Path),
		Ext:      filepath.Ext(file.Path),
		Path:     file.Path,
		Size:     file.Size,
		AgeHours: time.Since(file.ModifiedTime).Hours(),
	}

	for _, filter := range f.filters {
		result, err := expr.Run(filter.program, env)
		if err != nil {
			f.log.WithError(err).Warnf("Filter %q failed for: %q", filter.text, file.Path)
			continue
		}

		if match, ok := result.(bool); ok && match {
			f.log.Tracef("Filter %q excluded: %q", filter.text, file.Path)
			return true
		}
	}

	return false
}
