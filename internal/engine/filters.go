package engine

// defaultExcludeDirs are pruned when Options.DefaultExcludes is set.
var defaultExcludeDirs = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	"vendor",
	".venv",
	"venv",
	"__pycache__",
	".tox",
	".mypy_cache",
}

// defaultExcludeFiles are skipped when Options.DefaultExcludes is set.
var defaultExcludeFiles = []string{
	".DS_Store",
	"Thumbs.db",
}

// DefaultExcludes returns the ignore globs added by Options.DefaultExcludes.
func DefaultExcludes() []string {
	out := make([]string, 0, len(defaultExcludeDirs)+len(defaultExcludeFiles))
	out = append(out, defaultExcludeDirs...)
	return append(out, defaultExcludeFiles...)
}
