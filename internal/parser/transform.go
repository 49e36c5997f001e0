package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

var defaultIPPattern = regexp.MustCompile(`(?:[0-9]{1,3}\.){3}[0-9]{1,3}`)

// applyTransformations mutates extracted fields in declared order. Every
// transformation is forgiving: values that cannot be converted are left
// untouched.
func applyTransformations(fields map[string]string, transformations []models.Transformation) {
	for _, t := range transformations {
		value, ok := fields[t.Field]
		if !ok {
			continue
		}

		switch t.Type {
		case "lookup":
			if replacement, ok := t.Map[value]; ok {
				fields[t.Field] = replacement
			}
		case "datetime":
			if t.Format == "" {
				continue
			}
			if parsed, err := time.Parse(t.Format, value); err == nil {
				fields[t.Field] = parsed.UTC().Format(time.RFC3339)
			}
		case "extract_ip":
			re := defaultIPPattern
			if t.Pattern != "" {
				custom, err := regexp.Compile(t.Pattern)
				if err != nil {
					log.Debug().Str("field", t.Field).Err(err).Msg("Bad extract_ip pattern, using default")
				} else {
					re = custom
				}
			}
			if ip := re.FindString(value); ip != "" {
				fields[t.Field] = ip
			}
		case "lowercase":
			fields[t.Field] = strings.ToLower(value)
		case "uppercase":
			fields[t.Field] = strings.ToUpper(value)
		default:
			log.Debug().Str("type", t.Type).Str("field", t.Field).Msg("Unknown transformation type, skipping")
		}
	}
}
