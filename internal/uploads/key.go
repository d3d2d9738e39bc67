package uploads

import (
	"path"
	"strings"
)

// KeyRoot is the first segment of every upload object key.
const KeyRoot = "uploads"

// Key identifies an uploaded deal document: uploads/{uid}/{dealId}/{fileName}.
type Key struct {
	UserID   string
	DealID   string
	FileName string
}

// ParseKey accepts exactly four non-empty segments with "uploads" first.
func ParseKey(objectKey string) (Key, bool) {
	parts := strings.Split(objectKey, "/")
	if len(parts) != 4 || parts[0] != KeyRoot {
		return Key{}, false
	}
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "" {
			return Key{}, false
		}
	}
	return Key{UserID: parts[1], DealID: parts[2], FileName: parts[3]}, true
}

func (k Key) String() string {
	return path.Join(KeyRoot, k.UserID, k.DealID, k.FileName)
}
