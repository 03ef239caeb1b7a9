package episodes

// This package samples N-way K-shot classification episodes from image
// datasets laid out as one directory per class. It is the data-preparation
// side of a meta-learning loop: each call to Batch produces a meta-batch of
// tasks, every task with a disjoint support set and query set of decoded
// (image, one-hot label) pairs, stacked into flat float32 buffers that
// convert directly into gomlx tensors.
//
// The sampler is lazy about pixels: it only lists folders up front, and
// decodes exactly the images a batch needs. Two dataset variants are
// supported (see variants.go); the omniglot variant keeps its historical
// deterministic train/held-out split.
//
// Everything here is single-threaded. Batch mutates the sampler's random
// generator and the retained label map, so concurrent callers must
// serialize; typically the training loop calls Batch once per step.

// BatchSource is the minimal interface a training adapter needs from an
// episode producer. TaskBatchSampler and PreGeneratedEpisodes implement it.
type BatchSource interface {
	// Batch produces one meta-batch of tasks. A (nil, nil) return means the
	// source has nothing to produce in its current mode.
	Batch() (*MetaBatch, error)
}

// Sampler modes. Train mode samples episodes from the train pool; test mode
// selects the held-out pool but episode generation for it is a stub (the
// upstream pipeline never implemented it).
const (
	ModeTrain = "train"
	ModeTest  = "test"
)
