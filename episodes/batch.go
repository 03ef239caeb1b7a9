package episodes

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

// SetFlat stores one support or query set in flat contiguous buffers along
// with its shape metadata. Converting to gomlx tensors is a small, separate
// step so callers can also consume the raw buffers directly.
type SetFlat struct {
	// Images holds Count*Height*Width*Channels values in [0, 1].
	Images []float32

	// Labels holds Count*NumClasses one-hot values.
	Labels []float32

	Count      int
	Height     int
	Width      int
	Channels   int
	NumClasses int
}

// MetaBatch is the result of one Batch call: the four stacked outputs plus
// the (folder, local label) map of every task in the batch. It is ephemeral;
// nothing in it is shared with the sampler except the retained label map
// used by the diagnostic printer.
type MetaBatch struct {
	Support  SetFlat
	Query    SetFlat
	LabelMap []TaskLabels
}

// makeSetFlat flattens per-image pixel and label slices into one SetFlat,
// validating that every row has the expected dimension.
func makeSetFlat(images, labels [][]float32, v Variant, numClasses int) (SetFlat, error) {
	if len(images) != len(labels) {
		return SetFlat{}, fmt.Errorf("images and labels counts don't match: %d != %d", len(images), len(labels))
	}
	set := SetFlat{
		Count:      len(images),
		Height:     v.ImageSize,
		Width:      v.ImageSize,
		Channels:   v.Channels,
		NumClasses: numClasses,
	}
	imageDim := v.ImageSize * v.ImageSize * v.Channels
	set.Images = make([]float32, 0, set.Count*imageDim)
	set.Labels = make([]float32, 0, set.Count*numClasses)
	for i := range images {
		if len(images[i]) != imageDim {
			return SetFlat{}, fmt.Errorf("image %d has %d values, expected %d", i, len(images[i]), imageDim)
		}
		if len(labels[i]) != numClasses {
			return SetFlat{}, fmt.Errorf("label %d has %d values, expected %d", i, len(labels[i]), numClasses)
		}
		set.Images = append(set.Images, images[i]...)
		set.Labels = append(set.Labels, labels[i]...)
	}
	return set, nil
}

// ToGomlxTensors converts the set into an image tensor shaped
// [Count, Height, Width, Channels] and a one-hot label tensor shaped
// [Count, NumClasses].
func (f *SetFlat) ToGomlxTensors() (images, labels *tensors.Tensor, err error) {
	if f.Count == 0 {
		empty := make([][]float32, 0)
		return tensors.FromAnyValue(empty), tensors.FromAnyValue(empty), nil
	}
	if len(f.Images) != f.Count*f.Height*f.Width*f.Channels {
		return nil, nil, fmt.Errorf("flat image buffer has %d values, expected %d",
			len(f.Images), f.Count*f.Height*f.Width*f.Channels)
	}
	if len(f.Labels) != f.Count*f.NumClasses {
		return nil, nil, fmt.Errorf("flat label buffer has %d values, expected %d",
			len(f.Labels), f.Count*f.NumClasses)
	}
	images = tensors.FromShape(shapes.Make(dtypes.Float32, f.Count, f.Height, f.Width, f.Channels))
	images.MutableFlatData(func(flat any) {
		copy(flat.([]float32), f.Images)
	})
	labels = tensors.FromShape(shapes.Make(dtypes.Float32, f.Count, f.NumClasses))
	labels.MutableFlatData(func(flat any) {
		copy(flat.([]float32), f.Labels)
	})
	return images, labels, nil
}
