package fat16

import (
	"bytes"
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/errors"
	c "github.com/fatimg/fatimg/file_systems/common"
	"github.com/hashicorp/go-multierror"
)

// Check verifies the consistency of the volume without modifying it. It looks
// for corrupt or cross-linked chains, chains whose length doesn't match the
// file size, allocated clusters no file reaches, and FAT copies on disk that
// disagree with each other.
//
// The report lists every problem found. If there are any, the returned error
// wraps [errors.ErrInconsistent] along with one error per problem.
func (v *Volume) Check() (fatimg.CheckReport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	report := fatimg.CheckReport{}
	if err := v.checkOpen(); err != nil {
		return report, err
	}

	var problems *multierror.Error
	reachable := bitmap.New(int(v.fat.Size()))
	owners := make(map[c.ClusterID]string)

	v.dir.Each(func(_ int, entry *DirectoryEntry) bool {
		if entry.IsVolumeLabel() {
			return true
		}
		name := entry.DisplayName()

		iter := v.fat.ChainFrom(entry.StartCluster())
		for iter.Next() {
			cluster := iter.Cluster()
			owner, seen := owners[cluster]
			if seen && owner != name {
				report.CrossLinked = append(report.CrossLinked, uint16(cluster))
				problems = multierror.Append(
					problems,
					errors.ErrCorruptChain.WithMessage(
						fmt.Sprintf("cluster %d is used by both %s and %s", cluster, owner, name)),
				)
			}
			owners[cluster] = name
			reachable.Set(int(cluster), true)
		}

		if err := iter.Err(); err != nil {
			report.CorruptChains = append(report.CorruptChains, name)
			problems = multierror.Append(problems, fmt.Errorf("%s: %w", name, err))
			return true
		}

		if entry.IsDir() {
			return true
		}
		expected := v.geometry.ClustersForSize(int64(entry.FileSize))
		if iter.Steps() != expected {
			report.SizeMismatches = append(report.SizeMismatches, name)
			problems = multierror.Append(
				problems,
				errors.ErrCorruptChain.WithMessage(
					fmt.Sprintf(
						"%s is %d bytes and needs %d clusters but its chain has %d",
						name,
						entry.FileSize,
						expected,
						iter.Steps(),
					),
				),
			)
		}
		return true
	})

	for cluster := c.FirstDataCluster; uint(cluster) < v.fat.Size(); cluster++ {
		value := v.fat.Get(cluster)
		if value == FreeCluster || value == BadCluster || reachable.Get(int(cluster)) {
			continue
		}
		report.LostClusters = append(report.LostClusters, uint16(cluster))
	}
	if len(report.LostClusters) > 0 {
		problems = multierror.Append(
			problems,
			errors.ErrCorruptChain.WithMessage(
				fmt.Sprintf("%d clusters are allocated but unreachable", len(report.LostClusters))),
		)
	}

	mismatched, err := v.compareFATCopiesOnDisk()
	if err != nil {
		return report, err
	}
	report.FATCopyMismatches = mismatched
	for _, index := range mismatched {
		problems = multierror.Append(
			problems,
			errors.ErrCorruptChain.WithMessage(
				fmt.Sprintf("FAT copy %d differs from FAT copy 0", index)),
		)
	}

	if problems.ErrorOrNil() != nil {
		return report, errors.ErrInconsistent.Wrap(problems)
	}
	return report, nil
}

// compareFATCopiesOnDisk reads every FAT copy straight from the image, not the
// cache, and returns the indices of those that differ from copy 0.
func (v *Volume) compareFATCopiesOnDisk() ([]int, error) {
	first := make([]byte, v.geometry.FATBytes())
	err := v.image.ReadAt(first, v.geometry.SectorOffset(v.geometry.FATCopyStart(0)))
	if err != nil {
		return nil, err
	}

	var mismatched []int
	other := make([]byte, len(first))
	for i := uint(1); i < v.geometry.NumFATs; i++ {
		err = v.image.ReadAt(other, v.geometry.SectorOffset(v.geometry.FATCopyStart(i)))
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(first, other) {
			mismatched = append(mismatched, int(i))
		}
	}
	return mismatched, nil
}
