package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// builtinPatterns is the Logstash-compatible subset shipped with the parse
// engine. Patterns may reference each other with %{NAME}.
var builtinPatterns = map[string]string{
	"WORD":       `\b\w+\b`,
	"NOTSPACE":   `\S+`,
	"SPACE":      `\s*`,
	"DATA":       `.*?`,
	"GREEDYDATA": `.*`,
	"INT":        `[+-]?(?:[0-9]+)`,
	"BASE10NUM":  `[+-]?(?:[0-9]+(?:\.[0-9]+)?)`,
	"NUMBER":     `%{BASE10NUM}`,
	"POSINT":     `\b[1-9][0-9]*\b`,
	"UUID":       `[A-Fa-f0-9]{8}-(?:[A-Fa-f0-9]{4}-){3}[A-Fa-f0-9]{12}`,
	"IPV4":       `(?:[0-9]{1,3}\.){3}[0-9]{1,3}`,
	"IPV6":       `(?:[0-9A-Fa-f]{0,4}:){2,7}[0-9A-Fa-f]{0,4}(?:%[0-9A-Za-z]+)?`,
	"IP":         `(?:%{IPV6}|%{IPV4})`,
	"MAC":        `(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}`,
	"HOSTNAME":   `\b(?:[0-9A-Za-z][0-9A-Za-z-]{0,62})(?:\.(?:[0-9A-Za-z][0-9A-Za-z-]{0,62}))*\.?\b`,
	"IPORHOST":   `(?:%{IP}|%{HOSTNAME})`,
	"USERNAME":   `[a-zA-Z0-9._-]+`,
	"USER":       `%{USERNAME}`,
	"LOGLEVEL":   `(?i:alert|trace|debug|notice|info|warn(?:ing)?|err(?:or)?|crit(?:ical)?|fatal|severe|emerg(?:ency)?)`,

	"YEAR":               `(?:\d\d){1,2}`,
	"MONTHNUM":           `(?:0?[1-9]|1[0-2])`,
	"MONTHDAY":           `(?:(?:0[1-9])|(?:[12][0-9])|(?:3[01])|[1-9])`,
	"MONTH":              `\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\b`,
	"HOUR":               `(?:2[0123]|[01]?[0-9])`,
	"MINUTE":             `(?:[0-5][0-9])`,
	"SECOND":             `(?:(?:[0-5]?[0-9]|60)(?:[:.,][0-9]+)?)`,
	"TIME":               `%{HOUR}:%{MINUTE}(?::%{SECOND})?`,
	"ISO8601_TIMEZONE":   `(?:Z|[+-]%{HOUR}(?::?%{MINUTE}))`,
	"TIMESTAMP_ISO8601":  `%{YEAR}-%{MONTHNUM}-%{MONTHDAY}[T ]%{HOUR}:?%{MINUTE}(?::?%{SECOND})?%{ISO8601_TIMEZONE}?`,
	"SYSLOGTIMESTAMP":    `%{MONTH} +%{MONTHDAY} %{TIME}`,
	"SYSLOGHOST":         `%{IPORHOST}`,
}

var grokRef = regexp.MustCompile(`%\{(\w+)(?::(\w+))?\}`)

const maxGrokDepth = 16

// compileGrok expands a grok expression into a Go regexp. custom patterns
// shadow the built-in library. Unknown pattern references pass through
// unchanged and produce no groups.
func compileGrok(pattern string, custom map[string]string) (*regexp.Regexp, error) {
	expanded := expandGrok(pattern, custom, 0)
	re, err := regexp.Compile(expanded)
	if err != nil {
		return nil, fmt.Errorf("%w: bad grok pattern: %v", ErrUnparsable, err)
	}
	return re, nil
}

func expandGrok(pattern string, custom map[string]string, depth int) string {
	if depth > maxGrokDepth {
		return pattern
	}
	return grokRef.ReplaceAllStringFunc(pattern, func(ref string) string {
		parts := grokRef.FindStringSubmatch(ref)
		name, field := parts[1], parts[2]

		body, ok := custom[name]
		if !ok {
			body, ok = builtinPatterns[name]
		}
		if !ok {
			// Unknown pattern: keep the literal text.
			return ref
		}

		body = expandGrok(body, custom, depth+1)
		if field != "" {
			return "(?P<" + field + ">" + body + ")"
		}
		return "(?:" + body + ")"
	})
}

// parseGrok matches the expanded pattern and collects named groups as fields.
func parseGrok(input string, spec *models.ParserSpec) (map[string]string, error) {
	pattern := spec.GrokPattern
	if pattern == "" {
		pattern = spec.Pattern
	}
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: grok parser has no pattern", ErrUnparsable)
	}

	re, err := compileGrok(pattern, spec.CustomPatterns)
	if err != nil {
		return nil, err
	}

	match := re.FindStringSubmatch(input)
	if match == nil {
		return nil, fmt.Errorf("%w: grok pattern did not match", ErrUnparsable)
	}

	fields := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		fields[name] = match[i]
	}
	return fields, nil
}
