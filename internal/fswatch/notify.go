package fswatch

import (
	"fmt"
	"strings"

	"github.com/grovetools/linkwatch/errors"
)

// NotifyFilter selects which categories of change a Watcher reports.
type NotifyFilter int

const (
	FileName      NotifyFilter = 1
	DirectoryName NotifyFilter = 2
	Attributes    NotifyFilter = 4
	Size          NotifyFilter = 8
	LastWrite     NotifyFilter = 16
	LastAccess    NotifyFilter = 32
	CreationTime  NotifyFilter = 64
	Security      NotifyFilter = 256
)

// DefaultNotifyFilter is the mask a new Watcher starts with.
const DefaultNotifyFilter = FileName | DirectoryName | LastWrite

var notifyNames = []struct {
	name string
	flag NotifyFilter
}{
	{"file_name", FileName},
	{"directory_name", DirectoryName},
	{"attributes", Attributes},
	{"size", Size},
	{"last_write", LastWrite},
	{"last_access", LastAccess},
	{"creation_time", CreationTime},
	{"security", Security},
}

// Has reports whether any of the bits in flag are set.
func (f NotifyFilter) Has(flag NotifyFilter) bool {
	return f&flag != 0
}

func (f NotifyFilter) String() string {
	var parts []string
	for _, n := range notifyNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseNotifyFilter combines config names such as "file_name" or
// "last_write" into a mask.
func ParseNotifyFilter(names []string) (NotifyFilter, error) {
	var f NotifyFilter
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		found := false
		for _, n := range notifyNames {
			if n.name == name {
				f |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown notify category '%s'", raw))
		}
	}
	return f, nil
}

// categories that make a native Chmod relevant.
const metadataFlags = Attributes | LastAccess | CreationTime | Security
