package episodes

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// Pre-generated episode files start with a fixed header followed by
// episodes as raw little-endian float32 buffers, in the order support
// images, support labels, query images, query labels. Decoding images is by
// far the most expensive part of sampling, so training runs that reuse
// episodes read them back from such a file instead.
const (
	pregenMagic   = uint32(0x4d455042) // "BPEM" little-endian
	pregenVersion = uint32(1)
)

type pregenHeader struct {
	Magic        uint32
	Version      uint32
	SupportCount int32
	QueryCount   int32
	Height       int32
	Width        int32
	Channels     int32
	NumWays      int32
}

// Save generates numBatches meta-batches and writes them to w as a
// pre-generated episode file. With verbose set it renders a progress bar.
// Only train-mode samplers can save: test mode produces no episodes.
func (s *TaskBatchSampler) Save(numBatches int, verbose bool, w io.Writer) error {
	if s.cfg.Mode != ModeTrain {
		return &UsageError{Reason: "Save requires a train-mode sampler"}
	}
	header := pregenHeader{
		Magic:        pregenMagic,
		Version:      pregenVersion,
		SupportCount: int32(s.cfg.MetaBatchSize * s.cfg.NWay * s.cfg.KShot),
		QueryCount:   int32(s.cfg.MetaBatchSize * s.cfg.NWay * s.cfg.KQuery),
		Height:       int32(s.variant.ImageSize),
		Width:        int32(s.variant.ImageSize),
		Channels:     int32(s.variant.Channels),
		NumWays:      int32(s.cfg.NWay),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return errors.Wrap(err, "writing episode file header")
	}

	var pBar *progressbar.ProgressBar
	if verbose {
		pBar = progressbar.NewOptions(numBatches,
			progressbar.OptionSetDescription("Pre-generating"),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("batches"),
		)
	}
	for i := 0; i < numBatches; i++ {
		batch, err := s.Batch()
		if err != nil {
			return err
		}
		for _, buffer := range [][]float32{
			batch.Support.Images, batch.Support.Labels,
			batch.Query.Images, batch.Query.Labels,
		} {
			if err := binary.Write(w, binary.LittleEndian, buffer); err != nil {
				return errors.Wrapf(err, "writing episode batch %d", i)
			}
		}
		if verbose {
			_ = pBar.Add(1)
		}
	}
	if verbose {
		_ = pBar.Close()
	}
	return nil
}

// PreGeneratedEpisodes replays meta-batches saved with Save. It implements
// both BatchSource and train.Dataset: sequential reads, io.EOF at end of
// file, optionally looping forever.
type PreGeneratedEpisodes struct {
	name     string
	filePath string
	infinite bool

	file   *os.File
	header pregenHeader
	err    error
}

var _ train.Dataset = &PreGeneratedEpisodes{}
var _ BatchSource = &PreGeneratedEpisodes{}

// NewPreGeneratedEpisodes opens a pre-generated episode file. With infinite
// set, reads wrap around at end of file instead of returning io.EOF.
func NewPreGeneratedEpisodes(name, filePath string, infinite bool) (*PreGeneratedEpisodes, error) {
	p := &PreGeneratedEpisodes{name: name, filePath: filePath, infinite: infinite}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PreGeneratedEpisodes) open() error {
	if p.file != nil {
		_ = p.file.Close()
	}
	file, err := os.Open(p.filePath)
	if err != nil {
		return errors.Wrapf(err, "opening episode file %q", p.filePath)
	}
	p.file = file
	if err := binary.Read(file, binary.LittleEndian, &p.header); err != nil {
		return errors.Wrapf(err, "reading header of episode file %q", p.filePath)
	}
	if p.header.Magic != pregenMagic {
		return &ConfigurationError{Path: p.filePath, Reason: "not a pre-generated episode file"}
	}
	if p.header.Version != pregenVersion {
		return &ConfigurationError{Path: p.filePath,
			Reason: fmt.Sprintf("unsupported episode file version %d", p.header.Version)}
	}
	return nil
}

// Name implements train.Dataset.
func (p *PreGeneratedEpisodes) Name() string { return p.name }

// Reset implements train.Dataset: it reopens the file from the beginning.
func (p *PreGeneratedEpisodes) Reset() {
	p.err = p.open()
}

// Batch reads the next meta-batch from the file. Pre-generated batches
// carry no label map. At end of file it returns io.EOF, or wraps around
// when the reader is infinite.
func (p *PreGeneratedEpisodes) Batch() (*MetaBatch, error) {
	if p.err != nil {
		return nil, p.err
	}
	retries := 0
	for {
		batch, err := p.readBatch()
		if err == io.EOF && p.infinite {
			if retries != 0 {
				// A reopen produced no batch either: the file holds only a
				// header, maybe it failed during generation.
				p.err = errors.Errorf("no batches in episode file %q", p.filePath)
				return nil, p.err
			}
			retries++
			if err := p.open(); err != nil {
				p.err = err
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return batch, nil
	}
}

func (p *PreGeneratedEpisodes) readBatch() (*MetaBatch, error) {
	h := p.header
	support := SetFlat{
		Count:      int(h.SupportCount),
		Height:     int(h.Height),
		Width:      int(h.Width),
		Channels:   int(h.Channels),
		NumClasses: int(h.NumWays),
	}
	query := support
	query.Count = int(h.QueryCount)

	imageDim := int(h.Height) * int(h.Width) * int(h.Channels)
	support.Images = make([]float32, support.Count*imageDim)
	support.Labels = make([]float32, support.Count*int(h.NumWays))
	query.Images = make([]float32, query.Count*imageDim)
	query.Labels = make([]float32, query.Count*int(h.NumWays))

	for i, buffer := range [][]float32{support.Images, support.Labels, query.Images, query.Labels} {
		err := binary.Read(p.file, binary.LittleEndian, buffer)
		if err == io.EOF && i == 0 {
			// Clean end of file, before any part of a batch was read.
			return nil, io.EOF
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			p.err = errors.Errorf("episode file %q is truncated mid-batch", p.filePath)
			return nil, p.err
		}
		if err != nil {
			p.err = errors.Wrapf(err, "reading episode file %q", p.filePath)
			return nil, p.err
		}
	}
	return &MetaBatch{Support: support, Query: query}, nil
}

// Yield implements train.Dataset, with the same tensor layout as
// EpisodeDataset.Yield.
func (p *PreGeneratedEpisodes) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	batch, err := p.Batch()
	if err != nil {
		return nil, nil, nil, err
	}
	inputs, labels, err = metaBatchTensors(batch)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, inputs, labels, nil
}
