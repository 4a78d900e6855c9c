package fat16

import (
	"encoding/binary"
	"fmt"

	"github.com/fatimg/fatimg/errors"
	c "github.com/fatimg/fatimg/file_systems/common"
)

// Special FAT16 entry values.
const (
	FreeCluster   uint16 = 0x0000
	BadCluster    uint16 = 0xFFF7
	EndOfChainMin uint16 = 0xFFF8
	EndOfChain    uint16 = 0xFFFF
)

// IsEndOfChain is true for any value marking the last cluster of a chain.
func IsEndOfChain(value uint16) bool {
	return value >= EndOfChainMin
}

// Table is an in-memory copy of one FAT. Entries 0 and 1 are reserved; data
// clusters start at 2.
type Table struct {
	entries []uint16
	// size is the number of entries that map to real clusters. Anything past
	// it is kept so it can be written back unchanged, but is never allocated
	// or followed.
	size uint
}

// NewTableFromBytes decodes a raw FAT copy for a volume with `totalClusters`
// data clusters.
func NewTableFromBytes(raw []byte, totalClusters uint) *Table {
	entries := make([]uint16, len(raw)/2)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}

	size := uint(len(entries))
	if totalClusters+2 < size {
		size = totalClusters + 2
	}
	return &Table{entries: entries, size: size}
}

// Size gives the number of addressable entries, including the two reserved
// ones.
func (t *Table) Size() uint {
	return t.size
}

// Get returns the entry for `cluster`, or [BadCluster] if it's out of range.
func (t *Table) Get(cluster c.ClusterID) uint16 {
	if uint(cluster) >= uint(len(t.entries)) {
		return BadCluster
	}
	return t.entries[cluster]
}

// Set changes the entry for `cluster`.
func (t *Table) Set(cluster c.ClusterID, value uint16) error {
	if uint(cluster) >= t.size {
		return errors.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("cluster %d not in [0, %d)", cluster, t.size))
	}
	t.entries[cluster] = value
	return nil
}

// Bytes encodes the table as one on-disk FAT copy.
func (t *Table) Bytes() []byte {
	raw := make([]byte, len(t.entries)*2)
	for i, value := range t.entries {
		binary.LittleEndian.PutUint16(raw[i*2:], value)
	}
	return raw
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	entries := make([]uint16, len(t.entries))
	copy(entries, t.entries)
	return &Table{entries: entries, size: t.size}
}

func (t *Table) findFreeFrom(start c.ClusterID) (c.ClusterID, bool) {
	for cluster := start; uint(cluster) < t.size; cluster++ {
		if t.entries[cluster] == FreeCluster {
			return cluster, true
		}
	}
	return 0, false
}

// FindFree returns the lowest free cluster.
func (t *Table) FindFree() (c.ClusterID, bool) {
	return t.findFreeFrom(c.FirstDataCluster)
}

// FreeCount gives the number of free clusters.
func (t *Table) FreeCount() uint {
	count := uint(0)
	for cluster := c.FirstDataCluster; uint(cluster) < t.size; cluster++ {
		if t.entries[cluster] == FreeCluster {
			count++
		}
	}
	return count
}

// AllocateChain reserves `count` free clusters, lowest first, and links them
// into a single chain. If there aren't enough free clusters, the table is left
// exactly as it was and [errors.ErrDiskFull] is returned.
func (t *Table) AllocateChain(count uint) ([]c.ClusterID, error) {
	allocated := make([]c.ClusterID, 0, count)
	next := c.FirstDataCluster

	for uint(len(allocated)) < count {
		cluster, ok := t.findFreeFrom(next)
		if !ok {
			for _, provisional := range allocated {
				t.entries[provisional] = FreeCluster
			}
			return nil, errors.ErrDiskFull.WithMessage(
				fmt.Sprintf("need %d clusters but only %d are free", count, len(allocated)))
		}
		t.entries[cluster] = EndOfChain
		allocated = append(allocated, cluster)
		next = cluster + 1
	}

	for i := 0; i+1 < len(allocated); i++ {
		t.entries[allocated[i]] = uint16(allocated[i+1])
	}
	return allocated, nil
}

// ReleaseChain frees every cluster in the chain beginning at `start` and
// returns how many were freed. A start below 2 is an empty chain. If the chain
// is corrupt, the clusters reached before the bad link are still freed and the
// error is returned.
func (t *Table) ReleaseChain(start c.ClusterID) (int, error) {
	var visited []c.ClusterID
	iter := t.ChainFrom(start)
	for iter.Next() {
		visited = append(visited, iter.Cluster())
	}

	for _, cluster := range visited {
		t.entries[cluster] = FreeCluster
	}
	return len(visited), iter.Err()
}

// Chain collects the clusters of the chain beginning at `start`.
func (t *Table) Chain(start c.ClusterID) ([]c.ClusterID, error) {
	var clusters []c.ClusterID
	iter := t.ChainFrom(start)
	for iter.Next() {
		clusters = append(clusters, iter.Cluster())
	}
	return clusters, iter.Err()
}

// ChainIterator walks a cluster chain lazily. It visits at most Size()-2
// clusters, so a cyclic chain ends in an error instead of looping forever.
//
//	iter := table.ChainFrom(start)
//	for iter.Next() {
//		use(iter.Cluster())
//	}
//	if err := iter.Err(); err != nil { ... }
type ChainIterator struct {
	table   *Table
	start   c.ClusterID
	current c.ClusterID
	steps   uint
	started bool
	done    bool
	err     error
}

// ChainFrom returns an iterator over the chain beginning at `start`.
func (t *Table) ChainFrom(start c.ClusterID) *ChainIterator {
	return &ChainIterator{table: t, start: start}
}

func (it *ChainIterator) fail(format string, args ...any) bool {
	it.done = true
	it.err = errors.ErrCorruptChain.WithMessage(fmt.Sprintf(format, args...))
	return false
}

// Next advances to the next cluster. It returns false at the end of the chain
// or on error; check [ChainIterator.Err] to tell them apart.
func (it *ChainIterator) Next() bool {
	if it.done {
		return false
	}

	var candidate c.ClusterID
	if !it.started {
		it.started = true
		if it.start < c.FirstDataCluster {
			it.done = true
			return false
		}
		candidate = it.start
	} else {
		link := it.table.Get(it.current)
		switch {
		case IsEndOfChain(link):
			it.done = true
			return false
		case link == FreeCluster:
			return it.fail("cluster %d links to a free cluster", it.current)
		case link == BadCluster:
			return it.fail("cluster %d links to a bad cluster", it.current)
		}
		candidate = c.ClusterID(link)
	}

	if candidate < c.FirstDataCluster || uint(candidate) >= it.table.size {
		return it.fail(
			"link from cluster %d to %d is not in [2, %d)", it.current, candidate, it.table.size)
	}

	it.steps++
	if it.steps+2 > it.table.size {
		return it.fail("chain starting at cluster %d loops back on itself", it.start)
	}

	it.current = candidate
	return true
}

// Cluster gives the cluster the iterator is positioned on.
func (it *ChainIterator) Cluster() c.ClusterID {
	return it.current
}

// Steps gives how many clusters have been visited so far.
func (it *ChainIterator) Steps() uint {
	return it.steps
}

// Err returns the error that stopped iteration, if any.
func (it *ChainIterator) Err() error {
	return it.err
}
