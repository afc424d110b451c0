package metrics

// langByExtension maps file extensions to language names for the
// "languages touched" tally.
var langByExtension = map[string]string{
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".py":   "Python",
	".rb":   "Ruby",
	".go":   "Go",
	".rs":   "Rust",
	".java": "Java",
	".md":   "Markdown",
	".json": "JSON",
	".yaml": "YAML",
	".yml":  "YAML",
	".sh":   "Shell",
	".css":  "CSS",
	".html": "HTML",
	".zig":  "Zig",
	".c":    "C",
	".cpp":  "C++",
	".h":    "C/C++ Header",
	".sql":  "SQL",
	".toml": "TOML",
}
