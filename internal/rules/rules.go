// Package rules decides which captured log lines are security-relevant.
//
// The patterns live here, apart from the tailing loop, so each predicate can
// be exercised on its own. Predicates are pure and total: a line that matches
// nothing is simply not important.
package rules

import (
	"regexp"
	"strings"

	"github.com/auto-dns/docker-log-sentry/internal/domain"
)

// Predicate reports whether a raw log line is important.
type Predicate func(line string) bool

// Gunicorn access log:
//
//	<docker_ts> <ip> - - [<date>] "<METHOD> <path> HTTP/x.x" <status> <bytes> "<referer>" "<ua>"
var (
	flaskSensitiveRequest = regexp.MustCompile(`"(?:POST|PUT|DELETE|PATCH) (?:` +
		`/users/reset_password/\d+` +
		`|/users/delete/\d+` +
		`|/delete_user/[^"]*` +
		`|/update_user/[^"]*` +
		`|/api/user` +
		`|/login` +
		`)`)
	flaskErrorStatus = regexp.MustCompile(`" [45]\d\d `)
)

// Spring Boot log:
//
//	<docker_ts> <app_ts> <LEVEL> <pid> --- [<thread>] <logger> : <message>
var springImportant = regexp.MustCompile(`(?i)(?:` +
	`ERROR` +
	`|password` +
	`|/api/person.*(?:POST|PUT|DELETE)` +
	`|delete` +
	`|migration` +
	`|Exception` +
	`|WARN.*(?:auth|login|token|jwt|forbidden|unauthorized)` +
	`)`)

var defaultImportant = regexp.MustCompile(`\b(?:ERROR|WARN|Exception)\b`)

// Flask keeps security-sensitive requests regardless of status, and any 4xx/5xx response.
func Flask(line string) bool {
	return flaskSensitiveRequest.MatchString(line) || flaskErrorStatus.MatchString(line)
}

func Spring(line string) bool {
	return springImportant.MatchString(line)
}

// Default keeps whole-word ERROR, WARN and Exception from unrecognized sources.
func Default(line string) bool {
	return defaultImportant.MatchString(line)
}

var dispatch = map[domain.SourceType]Predicate{
	domain.SourceFlask:  Flask,
	domain.SourceSpring: Spring,
}

// For returns the predicate for a source type, falling back to Default.
func For(source domain.SourceType) Predicate {
	if p, ok := dispatch[source]; ok {
		return p
	}
	return Default
}

type sourceMarker struct {
	marker string
	source domain.SourceType
}

// Checked in order against the lower-cased file name; first match wins.
var sourceMarkers = []sourceMarker{
	{marker: "flask", source: domain.SourceFlask},
	{marker: "spring", source: domain.SourceSpring},
	{marker: "java", source: domain.SourceSpring},
}

// DetectSource infers the log format of a raw log file from its name.
func DetectSource(filename string) domain.SourceType {
	name := strings.ToLower(filename)
	for _, m := range sourceMarkers {
		if strings.Contains(name, m.marker) {
			return m.source
		}
	}
	return domain.SourceUnknown
}
