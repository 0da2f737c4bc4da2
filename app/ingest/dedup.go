package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// BuildDedupKey derives the source-scoped unique key for a normalized call.
// When the source supplied its own identifier the key is "{source}:{id}",
// which is the dedup seam between heterogeneous representations of the same
// entry. Otherwise the key falls back to a stable content hash of the
// normalized title, issuer and deadline, so re-runs of the same input keep
// producing the same key. Wall-clock time and batch position never
// participate.
func BuildDedupKey(sourceID string, call *Call) string {
	if call.ExternalID != "" {
		return fmt.Sprintf("%s:%s", sourceID, call.ExternalID)
	}
	return fmt.Sprintf("%s:generated-%s", sourceID, fallbackSeed(call))
}

func fallbackSeed(call *Call) string {
	deadline := ""
	if call.Deadline != nil {
		deadline = call.Deadline.Format("2006-01-02")
	}

	content := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(call.Title)),
		strings.ToLower(strings.TrimSpace(call.Issuer)),
		deadline,
	}, "|")

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])[:16]
}
