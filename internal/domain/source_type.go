package domain

import (
	"fmt"
	"strings"
)

type SourceType string

const (
	// SourceFlask is a Gunicorn HTTP access log.
	SourceFlask SourceType = "flask"
	// SourceSpring is a Spring Boot application log.
	SourceSpring  SourceType = "spring"
	SourceUnknown SourceType = "unknown"
)

func (st SourceType) IsValid() bool {
	switch st {
	case SourceFlask,
		SourceSpring,
		SourceUnknown:
		return true
	}
	return false
}

func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("unsupported source type %q", s)
	}
	return st, nil
}
