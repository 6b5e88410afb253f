package domain

import (
	"path/filepath"
	"strings"
)

// ImportantDirName is the subdirectory of the capture root holding filtered logs.
const ImportantDirName = "important"

// ContainerTarget is one configured container whose logs are captured.
type ContainerTarget struct {
	Name       string
	RawLogPath string
}

func NewContainerTarget(root, name string) ContainerTarget {
	return ContainerTarget{
		Name:       name,
		RawLogPath: RawLogPath(root, name),
	}
}

// SanitizeName makes a container name safe to use as a file name.
func SanitizeName(name string) string {
	return strings.TrimLeft(strings.ReplaceAll(name, "/", "_"), "_")
}

func RawLogPath(root, name string) string {
	return filepath.Join(root, SanitizeName(name)+".log")
}

// ImportantLogPath maps a raw log file to its filtered counterpart.
func ImportantLogPath(root, rawFilename string) string {
	return filepath.Join(root, ImportantDirName, rawFilename)
}
