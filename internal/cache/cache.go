package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ppiankov/geotrail/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "geotrail:v1:"

// ExtractionKey derives the cache key for an extraction result. It covers
// the file content hash plus every setting that changes the extracted
// points, so a config change never serves a stale result.
func ExtractionKey(contentSHA256 string, cfg model.ExtractConfig, privacyLevel string) string {
	material := fmt.Sprintf("%s|nodes=%d|tz=%s|level=%s", contentSHA256, cfg.MaxNodes, cfg.Timezone, privacyLevel)
	hash := sha256.Sum256([]byte(material))
	return keyPrefix + hex.EncodeToString(hash[:])
}
