package config

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

var expandPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// EnvFile is the parsed form of a KEY=VALUE configuration file. Pairs keep
// the order they appear in the file; the process environment is consulted
// during parsing but never mutated.
type EnvFile struct {
	keys   []string
	values map[string]string
}

// LoadEnvFile parses the configuration file at path.
//
// Parsing rules: blank lines and lines starting with '#' are skipped, an
// "export " prefix is stripped, lines without '=' are skipped. An inline '#'
// starts a comment only outside a quote pair. A value fully wrapped in one
// matching pair of single or double quotes has the pair stripped. ${NAME}
// sequences are substituted single-pass from values loaded earlier in the
// same file, then the process environment, then the empty string.
//
// When a key already exists in the process environment and override is
// false, the environment value wins for that key, but the file's value is
// still used when expanding later lines.
func LoadEnvFile(path string, override bool) (*EnvFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Field: "env-file", Value: path, Message: "cannot open configuration file"}
	}
	defer file.Close()

	ef := &EnvFile{values: make(map[string]string)}
	loaded := make(map[string]string)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimLeft(strings.TrimPrefix(line, "export "), " \t")
		}
		key, rawVal, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		val := strings.TrimSpace(stripInlineComment(strings.TrimSpace(rawVal)))
		val = stripQuotePair(val)
		val = expandPattern.ReplaceAllStringFunc(val, func(m string) string {
			name := m[2 : len(m)-1]
			if v, ok := loaded[name]; ok {
				return v
			}
			return os.Getenv(name)
		})

		loaded[key] = val
		if _, seen := ef.values[key]; !seen {
			ef.keys = append(ef.keys, key)
		}
		if envVal, exists := os.LookupEnv(key); exists && !override {
			ef.values[key] = envVal
			continue
		}
		ef.values[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Field: "env-file", Value: path, Message: err.Error()}
	}

	return ef, nil
}

// stripInlineComment removes a trailing '#' comment, tracking quote state
// with a single left-to-right scan so '#' inside a quote pair is kept.
func stripInlineComment(s string) string {
	inQuote := false
	var quoteChar byte
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '"', '\'':
			if !inQuote {
				inQuote = true
				quoteChar = ch
			} else if quoteChar == ch {
				inQuote = false
				quoteChar = 0
			}
		case '#':
			if !inQuote {
				return strings.TrimRight(s[:i], " \t")
			}
		}
	}
	return s
}

// stripQuotePair removes one fully wrapping pair of matching quotes.
func stripQuotePair(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Get returns the effective value for key, or the empty string.
func (f *EnvFile) Get(key string) string {
	return f.values[key]
}

// Lookup returns the effective value for key and whether it was present.
func (f *EnvFile) Lookup(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// GetDefault returns the effective value for key, or def when the key is
// missing or empty.
func (f *EnvFile) GetDefault(key, def string) string {
	if v := f.values[key]; v != "" {
		return v
	}
	return def
}

// Keys returns the keys in file order.
func (f *EnvFile) Keys() []string {
	return f.keys
}
