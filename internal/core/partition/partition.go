package partition

import "hash/fnv"

// For returns the partition for an entity identifier out of count partitions.
// Stable and deterministic: the same identifier always lands on the same
// partition, so one controller owns all work for a given entity.
// count <= 1 collapses everything onto partition 0.
func For(id string, count int) int {
	if count <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(count))
}
