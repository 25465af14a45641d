package cache

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/omniql-engine/chatdb/engine/schema"
)

// KeyPrefix namespaces every cache key
const KeyPrefix = "chatdb:"

// Cache stores translated queries by fingerprint
type Cache interface {
	// Get returns the stored value and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key fingerprints a translation request. The schema takes part so the same
// phrase against a different database misses.
func Key(target, phrase string, s *schema.Schema) string {
	d := xxhash.New()
	_, _ = d.WriteString(target)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(phrase)
	_, _ = d.WriteString("\x00")
	if s != nil {
		_, _ = d.WriteString(s.String())
	}
	return KeyPrefix + target + ":" + strconv.FormatUint(d.Sum64(), 16)
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
func (Nop) Delete(context.Context, string) error              { return nil }
