package cache

import "regexp"

// secretPatterns matches common secret-bearing assignment forms in captured
// task output; matched values are replaced, never the whole line, so
// surrounding log context stays readable.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\s"']+)`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*)([^\s"']+)`),
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*)([^\s"']+)`),
	regexp.MustCompile(`(?i)(password\s*[:=]\s*)([^\s"']+)`),
}

// Redact replaces recognized secret-bearing values in log output with a
// fixed placeholder before it is persisted into the cache.
func Redact(data []byte) []byte {
	out := data
	for _, pattern := range secretPatterns {
		out = pattern.ReplaceAll(out, []byte("${1}[REDACTED]"))
	}
	return out
}
