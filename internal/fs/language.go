package fs

import (
	"path/filepath"
	"strings"
)

// Language hints. They double as icon hints for source files.
const (
	LangGo         = "go"
	LangTypeScript = "typescript"
	LangJavaScript = "javascript"
	LangPython     = "python"
	LangRust       = "rust"
	LangJava       = "java"
	LangC          = "c"
	LangCPP        = "cpp"
	LangCSharp     = "csharp"
	LangRuby       = "ruby"
	LangPHP        = "php"
	LangSwift      = "swift"
	LangKotlin     = "kotlin"
	LangScala      = "scala"
	LangLua        = "lua"
	LangZig        = "zig"
	LangHaskell    = "haskell"
	LangElixir     = "elixir"
	LangShell      = "shell"
	LangSQL        = "sql"
	LangProto      = "protobuf"
	LangHTML       = "html"
	LangCSS        = "css"
	LangJSON       = "json"
	LangYAML       = "yaml"
	LangTOML       = "toml"
	LangMarkdown   = "markdown"
	LangXML        = "xml"
	LangText       = "text"
	LangUnknown    = ""
)

// Icon hints for entries that are not source files.
const (
	IconDirectory = "directory"
	IconFile      = "file"
	IconImage     = "image"
	IconArchive   = "archive"
	IconGitRepo   = "git"
)

// fileType groups the lower-case extensions sharing one hint.
type fileType struct {
	hint string
	exts []string
}

var languages = []fileType{
	{LangGo, []string{".go"}},
	{LangTypeScript, []string{".ts", ".tsx", ".mts", ".cts"}},
	{LangJavaScript, []string{".js", ".jsx", ".mjs", ".cjs"}},
	{LangPython, []string{".py", ".pyi", ".pyw"}},
	{LangRust, []string{".rs"}},
	{LangJava, []string{".java"}},
	{LangC, []string{".c", ".h"}},
	{LangCPP, []string{".cc", ".cpp", ".cxx", ".hpp", ".hxx"}},
	{LangCSharp, []string{".cs"}},
	{LangRuby, []string{".rb", ".rake"}},
	{LangPHP, []string{".php"}},
	{LangSwift, []string{".swift"}},
	{LangKotlin, []string{".kt", ".kts"}},
	{LangScala, []string{".scala"}},
	{LangLua, []string{".lua"}},
	{LangZig, []string{".zig"}},
	{LangHaskell, []string{".hs"}},
	{LangElixir, []string{".ex", ".exs"}},
	{LangShell, []string{".sh", ".bash", ".zsh", ".fish"}},
	{LangSQL, []string{".sql"}},
	{LangProto, []string{".proto"}},
	{LangHTML, []string{".html", ".htm"}},
	{LangCSS, []string{".css", ".scss", ".sass", ".less"}},
	{LangJSON, []string{".json", ".jsonc"}},
	{LangYAML, []string{".yaml", ".yml"}},
	{LangTOML, []string{".toml"}},
	{LangXML, []string{".xml"}},
	{LangMarkdown, []string{".md", ".markdown"}},
	{LangText, []string{".txt", ".text", ".rst", ".log"}},
}

var categories = []fileType{
	{IconImage, []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"}},
	{IconArchive, []string{".zip", ".tar", ".gz", ".tgz", ".xz", ".bz2", ".zst", ".7z", ".rar", ".jar"}},
}

var (
	extToLang = indexByExt(languages)
	extToIcon = indexByExt(categories)

	// Files recognised by their whole name.
	nameToLang = map[string]string{
		"Makefile":      LangShell,
		"makefile":      LangShell,
		"Dockerfile":    LangShell,
		"Jenkinsfile":   LangShell,
		"Rakefile":      LangRuby,
		"Gemfile":       LangRuby,
		".bashrc":       LangShell,
		".zshrc":        LangShell,
		".profile":      LangShell,
		".gitignore":    LangText,
		".gitconfig":    LangText,
		".editorconfig": LangText,
		"go.mod":        LangGo,
		"go.sum":        LangText,
	}
)

func indexByExt(types []fileType) map[string]string {
	index := make(map[string]string)
	for _, t := range types {
		for _, ext := range t.exts {
			index[ext] = t.hint
		}
	}
	return index
}

// DetectLanguage guesses the language of a file from its name, or returns
// LangUnknown.
func DetectLanguage(path string) string {
	if lang, ok := nameToLang[filepath.Base(path)]; ok {
		return lang
	}
	return extToLang[strings.ToLower(filepath.Ext(path))]
}

// IconHint returns a file-type hint for path that front ends can turn into
// an icon: the detected language, a coarse category, IconDirectory for
// directories or IconFile when nothing more specific is known.
func IconHint(path string, isDir bool) string {
	if isDir {
		return IconDirectory
	}
	if lang := DetectLanguage(path); lang != LangUnknown {
		return lang
	}
	if icon, ok := extToIcon[strings.ToLower(filepath.Ext(path))]; ok {
		return icon
	}
	return IconFile
}
