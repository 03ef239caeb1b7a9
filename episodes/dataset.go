package episodes

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
)

// EpisodeDataset adapts a BatchSource to gomlx's train.Dataset, so a
// training loop can consume freshly sampled episodes one step at a time.
type EpisodeDataset struct {
	name   string
	source BatchSource
}

var _ train.Dataset = &EpisodeDataset{}

// NewEpisodeDataset wraps an episode source for use with a train.Loop.
func NewEpisodeDataset(name string, source BatchSource) *EpisodeDataset {
	return &EpisodeDataset{name: name, source: source}
}

// Name implements train.Dataset.
func (d *EpisodeDataset) Name() string { return d.name }

// Reset implements train.Dataset. Every Yield samples a fresh batch, so
// there is no cursor to rewind.
func (d *EpisodeDataset) Reset() {}

// Yield implements train.Dataset. It returns:
//
//   - inputs: the support and query image tensors, each shaped
//     [count, height, width, channels].
//   - labels: the matching one-hot tensors, each shaped [count, n_way].
//
// A source with nothing to produce (a test-mode sampler) yields io.EOF.
func (d *EpisodeDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	batch, err := d.source.Batch()
	if err != nil {
		return nil, nil, nil, err
	}
	if batch == nil {
		return nil, nil, nil, io.EOF
	}
	inputs, labels, err = metaBatchTensors(batch)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, inputs, labels, nil
}

// metaBatchTensors converts a MetaBatch into the tensor quadruple every
// train.Dataset in this package yields.
func metaBatchTensors(batch *MetaBatch) (inputs, labels []*tensors.Tensor, err error) {
	sptImages, sptLabels, err := batch.Support.ToGomlxTensors()
	if err != nil {
		return nil, nil, err
	}
	qryImages, qryLabels, err := batch.Query.ToGomlxTensors()
	if err != nil {
		return nil, nil, err
	}
	inputs = []*tensors.Tensor{sptImages, qryImages}
	labels = []*tensors.Tensor{sptLabels, qryLabels}
	return inputs, labels, nil
}
