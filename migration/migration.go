package migration

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidKeyFormat = errors.New("invalid migration key format")

type (
	// ClockFunc supplies current time for version generation.
	ClockFunc func() time.Time

	// Migration is one reversible change: an up script and a down script,
	// identified by a sortable key of the form <version>_<slug>.
	Migration struct {
		Key     string
		Name    string
		Version string
		Up      string
		Down    string
	}
)

// DefaultVersionLayout is empty, meaning unix-timestamp versions.
// Any non-empty value is interpreted as a Go time layout.
const DefaultVersionLayout = ""

// New builds a migration from a version, a human readable name and the
// two scripts. The key is derived from version and name.
func New(version, name, up, down string) *Migration {
	return &Migration{
		Key:     CreateKeyFromVersionAndName(version, name),
		Name:    name,
		Version: version,
		Up:      up,
		Down:    down,
	}
}

type Migrations []*Migration

func (m Migrations) Keys() (result []string) {
	for i := range m {
		result = append(result, m[i].Key)
	}
	return result
}

func (m Migrations) Len() int {
	return len(m)
}

func (m Migrations) Less(i, j int) bool {
	if m[i].Version != m[j].Version {
		return m[i].Version < m[j].Version
	}
	return m[i].Key < m[j].Key
}

func (m Migrations) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}

// IndexOfKey returns the position of key in m, or -1.
func (m Migrations) IndexOfKey(key string) int {
	for i := range m {
		if m[i].Key == key {
			return i
		}
	}
	return -1
}

// CreateKeyFromVersionAndName joins a version prefix and a slugified name.
// A blank name yields the bare version.
func CreateKeyFromVersionAndName(version, name string) string {
	slug := Slugify(name)
	if slug == "" {
		return version
	}

	var result bytes.Buffer
	result.WriteString(version)
	result.WriteString("_")
	result.WriteString(slug)
	return result.String()
}

// Slugify lowercases a free text title and collapses whitespace runs
// into single underscores.
func Slugify(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, "_")
}

// GenerateVersion produces a fresh version token: the unix timestamp of
// cf() when layout is empty, otherwise cf() formatted with layout.
func GenerateVersion(cf ClockFunc, layout string) string {
	if layout == DefaultVersionLayout {
		return strconv.Itoa(int(cf().Unix()))
	}
	return cf().Format(layout)
}

// SplitKey breaks a key into its version prefix and name portion. The
// name may be empty; a key without an all-digit prefix is rejected.
func SplitKey(key string) (version, name string, err error) {
	idx := strings.IndexByte(key, '_')
	if idx < 0 {
		version = key
	} else {
		version = key[:idx]
		name = key[idx+1:]
	}

	if version == "" || strings.TrimLeft(version, "0123456789") != "" {
		return "", "", errors.Wrapf(ErrInvalidKeyFormat, "%s", key)
	}

	return version, name, nil
}
