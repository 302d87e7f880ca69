// Package lang maps file extensions to language names. Detection is purely
// extension based; files it doesn't recognize are excluded from indexing.
package lang

import (
	"path/filepath"
	"strings"
)

var extensionMap = map[string]string{
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".c":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".cxx":   "C++",
	".h":     "C/C++ Header",
	".hpp":   "C++ Header",
	".cs":    "C#",
	".go":    "Go",
	".rs":    "Rust",
	".php":   "PHP",
	".rb":    "Ruby",
	".swift": "Swift",
	".kt":    "Kotlin",
	".scala": "Scala",
	".sh":    "Shell",
	".bash":  "Shell",
	".zsh":   "Shell",
	".html":  "HTML",
	".htm":   "HTML",
	".css":   "CSS",
	".scss":  "SCSS",
	".json":  "JSON",
	".xml":   "XML",
	".yaml":  "YAML",
	".yml":   "YAML",
	".md":    "Markdown",
	".txt":   "Text",
	".sql":   "SQL",
	".r":     "R",
	".lua":   "Lua",
	".pl":    "Perl",
}

// skipExtensions are binary or generated formats that are never indexed even
// when an extension matches nothing above.
var skipExtensions = map[string]bool{
	".pyc": true, ".pyo": true, ".so": true, ".o": true, ".a": true,
	".dll": true, ".exe": true, ".bin": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".ico": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".map": true,
}

// skipSuffixes catches minified bundles whose final extension is still .js.
var skipSuffixes = []string{".min.js", ".bundle.js"}

// Detect returns the language for a file path, or "unknown".
func Detect(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if l, ok := extensionMap[ext]; ok {
		return l
	}
	return "unknown"
}

// Indexable reports whether a file should enter the semantic index.
// Unknown and plain-text files are excluded, as are binary formats.
func Indexable(path string) bool {
	lower := strings.ToLower(path)
	for _, s := range skipSuffixes {
		if strings.HasSuffix(lower, s) {
			return false
		}
	}
	if skipExtensions[filepath.Ext(lower)] {
		return false
	}
	l := Detect(path)
	return l != "unknown" && l != "Text"
}
