package accounting

import (
	"sync"

	"github.com/Sumatoshi-tech/branchweight/pkg/gitcli"
)

// ownershipShardCount is the number of independently locked shards. Sharding
// by the object id's first byte spreads contention across workers publishing
// their branch sets concurrently.
const ownershipShardCount = 256

// owner records which branches reference one object. Branches are stored as
// indexes into the run's branch slice; the slice order is irrelevant because
// insertion is commutative.
type owner struct {
	size     uint64
	branches []int32
}

// ownershipMap is the one structure mutated by multiple workers: object id →
// owning branches. After the collection barrier it is read-only.
type ownershipMap struct {
	shards [ownershipShardCount]ownershipShard
}

type ownershipShard struct {
	mu      sync.Mutex
	entries map[gitcli.OID]*owner
}

func newOwnershipMap() *ownershipMap {
	m := &ownershipMap{}
	for i := range m.shards {
		m.shards[i].entries = make(map[gitcli.OID]*owner)
	}

	return m
}

// shardFor selects the shard for an object id. Object ids are content hashes,
// so the first byte is uniformly distributed.
func (m *ownershipMap) shardFor(id gitcli.OID) *ownershipShard {
	return &m.shards[id[0]]
}

// AddSet merges one branch's full object set. Safe for concurrent use; the
// result is identical regardless of the order branches complete in.
func (m *ownershipMap) AddSet(branch int32, set BranchSet) {
	for id, size := range set {
		shard := m.shardFor(id)

		shard.mu.Lock()

		entry, ok := shard.entries[id]
		if ok {
			entry.branches = append(entry.branches, branch)
		} else {
			shard.entries[id] = &owner{size: size, branches: []int32{branch}}
		}

		shard.mu.Unlock()
	}
}

// OwnerCount returns how many branches reference id. Zero means the id was
// never collected. Only valid after the collection barrier.
func (m *ownershipMap) OwnerCount(id gitcli.OID) int {
	shard := m.shardFor(id)

	entry, ok := shard.entries[id]
	if !ok {
		return 0
	}

	return len(entry.branches)
}

// DistinctTotals sums every object exactly once: the combined disk footprint
// of all unmerged branches and the number of distinct objects.
func (m *ownershipMap) DistinctTotals() (uint64, int) {
	var size uint64

	var count int

	for i := range m.shards {
		for _, entry := range m.shards[i].entries {
			size += entry.size
			count++
		}
	}

	return size, count
}
