package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// NewStoreID returns a tenant identifier in the store_<timestamp>_<suffix>
// format. The id is shown to the owner and re-entered by hand on other
// devices, so it stays short and uses only underscores as separators.
func NewStoreID() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("store_%d", time.Now().UnixMilli())
	}
	return fmt.Sprintf("store_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
