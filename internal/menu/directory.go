// internal/menu/directory.go
package menu

import "github.com/tamzrod/gw-hbloader/internal/loader"

// Directory listing limits.
const (
	MaxEntries  = 1024
	ListingSize = 16 * 1024
)

// Directory is the list of entry directories on the card, in listing order.
type Directory []string

// ParseDirectory reads a read-dir listing. Each record is a type byte
// below 0x20 followed by the name; a zero byte ends the listing.
// Only directory records are kept.
func ParseDirectory(buf []byte) Directory {
	var out Directory
	i := 0
	for i < len(buf) && buf[i] != 0 && len(out) < MaxEntries {
		kind := buf[i]
		i++
		start := i
		for i < len(buf) && buf[i] >= 0x20 {
			i++
		}
		if kind == loader.EntryDir {
			out = append(out, string(buf[start:i]))
		}
	}
	return out
}
