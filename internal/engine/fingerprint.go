package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"sync"
)

// Fingerprint deterministically identifies the logical condition
// (addon, alert type, device). It is the SHA-256 of the colon-joined triple,
// truncated to 32 hex characters.
func Fingerprint(addonID, alertType, deviceIP string) string {
	sum := sha256.Sum256([]byte(addonID + ":" + alertType + ":" + deviceIP))
	return hex.EncodeToString(sum[:])[:32]
}

const lockShards = 256

// lockTable serializes writes per fingerprint with a fixed shard count.
// Distinct fingerprints that share a shard contend, but never deadlock:
// each caller holds at most one shard at a time.
type lockTable struct {
	shards [lockShards]sync.Mutex
}

func (t *lockTable) lock(fingerprint string) func() {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	shard := &t.shards[h.Sum32()%lockShards]
	shard.Lock()
	return shard.Unlock
}
