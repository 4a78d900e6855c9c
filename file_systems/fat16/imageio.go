package fat16

import (
	"fmt"
	"io"

	"github.com/fatimg/fatimg/errors"
	c "github.com/fatimg/fatimg/file_systems/common"
)

// imageIO does positioned reads and writes against the backing image. Offsets
// come from the volume geometry.
type imageIO struct {
	stream   io.ReadWriteSeeker
	geometry Geometry
}

func (img *imageIO) seek(offset int64) error {
	_, err := img.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return errors.ErrIOFailed.WithMessage(fmt.Sprintf("seek to %d", offset)).Wrap(err)
	}
	return nil
}

// ReadAt fills `buffer` from the image starting at byte `offset`.
func (img *imageIO) ReadAt(buffer []byte, offset int64) error {
	if err := img.seek(offset); err != nil {
		return err
	}
	_, err := io.ReadFull(img.stream, buffer)
	if err != nil {
		return errors.ErrIOFailed.WithMessage(
			fmt.Sprintf("read %d bytes at offset %d", len(buffer), offset)).Wrap(err)
	}
	return nil
}

// WriteAt writes all of `buffer` to the image starting at byte `offset`.
func (img *imageIO) WriteAt(buffer []byte, offset int64) error {
	if err := img.seek(offset); err != nil {
		return err
	}
	_, err := img.stream.Write(buffer)
	if err != nil {
		return errors.ErrIOFailed.WithMessage(
			fmt.Sprintf("write %d bytes at offset %d", len(buffer), offset)).Wrap(err)
	}
	return nil
}

func (img *imageIO) checkCluster(cluster c.ClusterID, buffer []byte) error {
	if cluster < c.FirstDataCluster ||
		uint(cluster-c.FirstDataCluster) >= img.geometry.TotalClusters {
		return errors.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"cluster %d not in [2, %d)", cluster, img.geometry.TotalClusters+2))
	}
	if uint(len(buffer)) != img.geometry.BytesPerCluster {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"cluster buffer must be %d bytes, got %d",
				img.geometry.BytesPerCluster,
				len(buffer),
			),
		)
	}
	return nil
}

// ReadCluster reads one whole data cluster into `buffer`.
func (img *imageIO) ReadCluster(cluster c.ClusterID, buffer []byte) error {
	if err := img.checkCluster(cluster, buffer); err != nil {
		return err
	}
	return img.ReadAt(buffer, img.geometry.ClusterOffset(cluster))
}

// WriteCluster writes one whole data cluster from `buffer`.
func (img *imageIO) WriteCluster(cluster c.ClusterID, buffer []byte) error {
	if err := img.checkCluster(cluster, buffer); err != nil {
		return err
	}
	return img.WriteAt(buffer, img.geometry.ClusterOffset(cluster))
}
