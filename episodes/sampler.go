package episodes

import (
	"fmt"
	"math/rand"
	"time"
)

// Config holds the construction parameters of a TaskBatchSampler. All fields
// are fixed at construction.
type Config struct {
	// Dataset selects the variant: "miniimagenet" or "omniglot". The variant
	// fixes image size, channel count and how class folders are discovered.
	Dataset string

	// Root is the dataset root directory.
	Root string

	// Mode selects the active pool: ModeTrain or ModeTest.
	Mode string

	// NWay is the number of classes per task.
	NWay int

	// KShot is the number of support images per class.
	KShot int

	// KQuery is the number of query images per class. The omniglot variant
	// forces KQuery = KShot.
	KQuery int

	// MetaBatchSize is the number of tasks per meta-batch.
	MetaBatchSize int

	// Seed controls the sampler's random generator. If zero, a time-based
	// seed is used.
	Seed int64

	// KeepImageOrder disables the per-class shuffle of sampled images that
	// normally runs before the support/query split. Iteration order only;
	// class membership is unaffected.
	KeepImageOrder bool
}

// TaskBatchSampler produces meta-batches of N-way K-shot tasks from a pool
// of class folders. Not safe for concurrent use: Batch mutates the random
// generator and the retained label map.
type TaskBatchSampler struct {
	cfg     Config
	variant Variant
	rng     *rand.Rand

	trainFolders   []string
	heldOutFolders []string

	// Label maps of every batch generated since the last print, retained
	// for the consume-once diagnostic printer. Cleared by PrintLabelMap.
	lastLabelMap []TaskLabels
}

var _ BatchSource = &TaskBatchSampler{}

// NewTaskBatchSampler resolves the dataset variant, discovers both folder
// pools and validates the episode geometry.
func NewTaskBatchSampler(cfg Config) (*TaskBatchSampler, error) {
	variant, err := ResolveVariant(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeTrain, ModeTest:
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("mode must be %q or %q, got %q", ModeTrain, ModeTest, cfg.Mode)}
	}
	if cfg.NWay < 1 || cfg.KShot < 1 || cfg.KQuery < 1 || cfg.MetaBatchSize < 1 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"n-way, k-shot, k-query and meta-batch size must all be at least 1, got %d/%d/%d/%d",
			cfg.NWay, cfg.KShot, cfg.KQuery, cfg.MetaBatchSize)}
	}
	if variant.EqualQuery && cfg.KQuery != cfg.KShot {
		cfg.KQuery = cfg.KShot
	}
	train, heldOut, err := variant.discover(cfg.Root)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TaskBatchSampler{
		cfg:            cfg,
		variant:        variant,
		rng:            rand.New(rand.NewSource(seed)),
		trainFolders:   train,
		heldOutFolders: heldOut,
	}, nil
}

// Config returns the effective configuration, after variant quirks such as
// the omniglot KQuery forcing have been applied.
func (s *TaskBatchSampler) Config() Config { return s.cfg }

// Variant returns the resolved dataset variant.
func (s *TaskBatchSampler) Variant() Variant { return s.variant }

// classSample records one class's contribution to a task: its assigned local
// label and the disjoint support and query image paths.
type classSample struct {
	folder  string
	label   int
	support []string
	query   []string
}

// samplePlan runs the sampling stages that need no pixel data: pool shuffle,
// class selection, contiguous task partitioning, local label assignment, and
// the per-class support/query split. Returns one []classSample per task.
func (s *TaskBatchSampler) samplePlan() ([][]classSample, error) {
	pool := s.trainFolders
	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	need := s.cfg.NWay * s.cfg.MetaBatchSize
	if len(pool) < need {
		return nil, &InsufficientDataError{What: "class folders", Need: need, Have: len(pool)}
	}

	// The pool is freshly shuffled, so its prefix is a uniform sample of
	// `need` distinct folders.
	selected := make([]string, need)
	copy(selected, pool[:need])
	s.rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})

	perClass := s.cfg.KShot + s.cfg.KQuery
	tasks := make([][]classSample, 0, s.cfg.MetaBatchSize)
	for t := 0; t < s.cfg.MetaBatchSize; t++ {
		// Tasks are contiguous groups of NWay folders; labels are assigned
		// by position after an in-group shuffle.
		group := selected[t*s.cfg.NWay : (t+1)*s.cfg.NWay]
		s.rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		task := make([]classSample, 0, s.cfg.NWay)
		for label, folder := range group {
			images, err := listImages(folder)
			if err != nil {
				return nil, &ConfigurationError{Path: folder, Reason: "cannot list images", Err: err}
			}
			if len(images) < perClass {
				return nil, &InsufficientDataError{What: folder, Need: perClass, Have: len(images)}
			}
			sampled := make([]string, perClass)
			for i, p := range s.rng.Perm(len(images))[:perClass] {
				sampled[i] = images[p]
			}
			if !s.cfg.KeepImageOrder {
				s.rng.Shuffle(len(sampled), func(i, j int) {
					sampled[i], sampled[j] = sampled[j], sampled[i]
				})
			}
			task = append(task, s.splitSupportQuery(folder, label, sampled))
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// splitSupportQuery picks KShot random images of the sampled subset as the
// support set; the query set is the positional complement, in sampled order.
func (s *TaskBatchSampler) splitSupportQuery(folder string, label int, sampled []string) classSample {
	picked := s.rng.Perm(len(sampled))[:s.cfg.KShot]
	inSupport := make(map[int]bool, len(picked))
	support := make([]string, 0, s.cfg.KShot)
	for _, idx := range picked {
		support = append(support, sampled[idx])
		inSupport[idx] = true
	}
	query := make([]string, 0, len(sampled)-s.cfg.KShot)
	for idx, img := range sampled {
		if inSupport[idx] {
			continue
		}
		query = append(query, img)
	}
	return classSample{folder: folder, label: label, support: support, query: query}
}

// Batch generates one meta-batch: MetaBatchSize tasks of NWay classes each,
// with KShot support and KQuery query images per class, decoded and stacked
// into flat tensors. The batch either fully succeeds or fails before any
// tensors are produced.
//
// In test mode the held-out pool is selected but no episodes are generated;
// Batch returns (nil, nil). This mirrors the upstream pipeline, where the
// test path was never implemented.
func (s *TaskBatchSampler) Batch() (*MetaBatch, error) {
	if s.cfg.Mode == ModeTest {
		return nil, nil
	}

	tasks, err := s.samplePlan()
	if err != nil {
		return nil, err
	}

	var sptImages, sptLabels, qryImages, qryLabels [][]float32
	labelMap := make([]TaskLabels, 0, len(tasks))
	for _, task := range tasks {
		taskLabels := make(TaskLabels, 0, len(task))
		for _, class := range task {
			taskLabels = append(taskLabels, ClassLabel{Folder: class.folder, Label: class.label})
			for _, img := range class.support {
				pixels, err := decodeImage(img, s.variant)
				if err != nil {
					return nil, err
				}
				sptImages = append(sptImages, pixels)
				sptLabels = append(sptLabels, oneHot(class.label, s.cfg.NWay))
			}
			for _, img := range class.query {
				pixels, err := decodeImage(img, s.variant)
				if err != nil {
					return nil, err
				}
				qryImages = append(qryImages, pixels)
				qryLabels = append(qryLabels, oneHot(class.label, s.cfg.NWay))
			}
		}
		labelMap = append(labelMap, taskLabels)
	}

	// Each set is shuffled with a matched permutation so images and labels
	// stay aligned; the seed is drawn once per set.
	shuffleMatched(s.rng.Int63(), sptImages, sptLabels)
	shuffleMatched(s.rng.Int63(), qryImages, qryLabels)

	support, err := makeSetFlat(sptImages, sptLabels, s.variant, s.cfg.NWay)
	if err != nil {
		return nil, err
	}
	query, err := makeSetFlat(qryImages, qryLabels, s.variant, s.cfg.NWay)
	if err != nil {
		return nil, err
	}

	s.lastLabelMap = append(s.lastLabelMap, labelMap...)
	return &MetaBatch{Support: support, Query: query, LabelMap: labelMap}, nil
}

// shuffleMatched applies the identical permutation to xs and ys by seeding
// two generators with the same value.
func shuffleMatched(seed int64, xs, ys [][]float32) {
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(xs), func(i, j int) {
		xs[i], xs[j] = xs[j], xs[i]
	})
	r = rand.New(rand.NewSource(seed))
	r.Shuffle(len(ys), func(i, j int) {
		ys[i], ys[j] = ys[j], ys[i]
	})
}
