package episodes

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writePNG writes a small solid-color PNG to path.
func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image %s: %v", path, err)
	}
}

// makeClassDir fills dir with numImages PNG files.
func makeClassDir(t *testing.T, dir string, numImages int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create class dir %s: %v", dir, err)
	}
	for i := 0; i < numImages; i++ {
		c := color.NRGBA{R: uint8(40 * i), G: uint8(255 - 10*i), B: 128, A: 255}
		writePNG(t, filepath.Join(dir, fmt.Sprintf("img%02d.png", i)), c)
	}
}

// makeMiniRoot builds a miniimagenet-style root: train/ and test/ with class
// subfolders of numImages images each.
func makeMiniRoot(t *testing.T, numTrain, numTest, numImages int) string {
	t.Helper()
	root := t.TempDir()
	for i := 0; i < numTrain; i++ {
		makeClassDir(t, filepath.Join(root, "train", fmt.Sprintf("class%02d", i)), numImages)
	}
	for i := 0; i < numTest; i++ {
		makeClassDir(t, filepath.Join(root, "test", fmt.Sprintf("heldout%02d", i)), numImages)
	}
	return root
}

// makeOmniglotRoot builds a two-level family/character root.
func makeOmniglotRoot(t *testing.T, numFamilies, charsPerFamily, numImages int) string {
	t.Helper()
	root := t.TempDir()
	for f := 0; f < numFamilies; f++ {
		for c := 0; c < charsPerFamily; c++ {
			dir := filepath.Join(root, fmt.Sprintf("family%02d", f), fmt.Sprintf("char%02d", c))
			makeClassDir(t, dir, numImages)
		}
	}
	return root
}

func miniConfig(root string) Config {
	return Config{
		Dataset:       "miniimagenet",
		Root:          root,
		Mode:          ModeTrain,
		NWay:          5,
		KShot:         1,
		KQuery:        3,
		MetaBatchSize: 2,
		Seed:          42,
	}
}

func TestBatchShapesAndLabels(t *testing.T) {
	root := makeMiniRoot(t, 12, 3, 10)
	s, err := NewTaskBatchSampler(miniConfig(root))
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}

	batch, err := s.Batch()
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if batch == nil {
		t.Fatal("Batch returned nil in train mode")
	}

	wantSupport := 2 * 5 * 1
	wantQuery := 2 * 5 * 3
	if batch.Support.Count != wantSupport {
		t.Fatalf("support count = %d, want %d", batch.Support.Count, wantSupport)
	}
	if batch.Query.Count != wantQuery {
		t.Fatalf("query count = %d, want %d", batch.Query.Count, wantQuery)
	}
	imageDim := 84 * 84 * 3
	if len(batch.Support.Images) != wantSupport*imageDim {
		t.Fatalf("support image buffer = %d values, want %d", len(batch.Support.Images), wantSupport*imageDim)
	}
	if len(batch.Query.Labels) != wantQuery*5 {
		t.Fatalf("query label buffer = %d values, want %d", len(batch.Query.Labels), wantQuery*5)
	}

	// Every label row must be one-hot of width NWay.
	for i := 0; i < wantSupport; i++ {
		row := batch.Support.Labels[i*5 : (i+1)*5]
		sum := float32(0)
		for _, v := range row {
			if v != 0 && v != 1 {
				t.Fatalf("support label row %d is not one-hot: %v", i, row)
			}
			sum += v
		}
		if sum != 1 {
			t.Fatalf("support label row %d sums to %v, want 1", i, sum)
		}
	}

	// Per task, local labels are exactly {0..NWay-1}, each exactly once.
	if len(batch.LabelMap) != 2 {
		t.Fatalf("label map has %d tasks, want 2", len(batch.LabelMap))
	}
	for ti, task := range batch.LabelMap {
		if len(task) != 5 {
			t.Fatalf("task %d label map has %d classes, want 5", ti, len(task))
		}
		seen := make(map[int]bool)
		for _, ref := range task {
			if ref.Label < 0 || ref.Label >= 5 {
				t.Fatalf("task %d label %d out of range", ti, ref.Label)
			}
			if seen[ref.Label] {
				t.Fatalf("task %d repeats label %d", ti, ref.Label)
			}
			seen[ref.Label] = true
		}
	}
}

func TestSupportQueryDisjointAndExhaustive(t *testing.T) {
	// 10 classes with exactly KShot+KQuery = 16 images each: every image of a
	// selected class must land in exactly one of support or query.
	root := makeMiniRoot(t, 10, 1, 16)
	cfg := miniConfig(root)
	cfg.KShot = 1
	cfg.KQuery = 15
	s, err := NewTaskBatchSampler(cfg)
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}

	tasks, err := s.samplePlan()
	if err != nil {
		t.Fatalf("samplePlan failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("plan has %d tasks, want 2", len(tasks))
	}

	usedFolders := make(map[string]bool)
	for _, task := range tasks {
		if len(task) != 5 {
			t.Fatalf("task has %d classes, want 5", len(task))
		}
		for _, class := range task {
			if usedFolders[class.folder] {
				t.Fatalf("folder %s appears in more than one task", class.folder)
			}
			usedFolders[class.folder] = true

			if len(class.support) != 1 || len(class.query) != 15 {
				t.Fatalf("class %s split %d/%d, want 1/15", class.folder, len(class.support), len(class.query))
			}
			all := make(map[string]bool)
			for _, img := range class.support {
				all[img] = true
			}
			for _, img := range class.query {
				if all[img] {
					t.Fatalf("image %s is in both support and query", img)
				}
				all[img] = true
			}
			if len(all) != 16 {
				t.Fatalf("class %s uses %d distinct images, want all 16", class.folder, len(all))
			}
		}
	}
	// All 10 classes used, none repeated across tasks.
	if len(usedFolders) != 10 {
		t.Fatalf("plan used %d distinct folders, want 10", len(usedFolders))
	}
}

func TestBatchDeterminism(t *testing.T) {
	root := makeMiniRoot(t, 12, 1, 10)
	cfg := miniConfig(root)

	first, err := NewTaskBatchSampler(cfg)
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}
	second, err := NewTaskBatchSampler(cfg)
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}

	b1, err := first.Batch()
	if err != nil {
		t.Fatalf("first Batch failed: %v", err)
	}
	b2, err := second.Batch()
	if err != nil {
		t.Fatalf("second Batch failed: %v", err)
	}

	if !reflect.DeepEqual(b1.LabelMap, b2.LabelMap) {
		t.Fatalf("label maps differ with identical seeds:\n%v\n%v", b1.LabelMap, b2.LabelMap)
	}
	if !reflect.DeepEqual(b1.Support.Images, b2.Support.Images) {
		t.Fatal("support image buffers differ with identical seeds")
	}
	if !reflect.DeepEqual(b1.Query.Labels, b2.Query.Labels) {
		t.Fatal("query label buffers differ with identical seeds")
	}
}

func TestInsufficientClassFolders(t *testing.T) {
	root := makeMiniRoot(t, 6, 1, 10) // need 5*2 = 10 classes
	s, err := NewTaskBatchSampler(miniConfig(root))
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}
	_, err = s.Batch()
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Need != 10 || insufficient.Have != 6 {
		t.Fatalf("unexpected need/have: %d/%d", insufficient.Need, insufficient.Have)
	}
}

func TestInsufficientImages(t *testing.T) {
	root := makeMiniRoot(t, 10, 1, 3) // need KShot+KQuery = 4 per class
	s, err := NewTaskBatchSampler(miniConfig(root))
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}
	_, err = s.Batch()
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Need != 4 || insufficient.Have != 3 {
		t.Fatalf("unexpected need/have: %d/%d", insufficient.Need, insufficient.Have)
	}
}

func TestConfigurationErrors(t *testing.T) {
	root := makeMiniRoot(t, 5, 1, 4)

	cases := []struct {
		name string
		edit func(cfg *Config)
	}{
		{"unknown dataset", func(cfg *Config) { cfg.Dataset = "cifar" }},
		{"bad mode", func(cfg *Config) { cfg.Mode = "eval" }},
		{"missing root", func(cfg *Config) { cfg.Root = filepath.Join(root, "nope") }},
		{"zero n-way", func(cfg *Config) { cfg.NWay = 0 }},
	}
	for _, tc := range cases {
		cfg := miniConfig(root)
		tc.edit(&cfg)
		_, err := NewTaskBatchSampler(cfg)
		var confErr *ConfigurationError
		if !errors.As(err, &confErr) {
			t.Fatalf("%s: expected ConfigurationError, got %v", tc.name, err)
		}
	}

	// A train/ directory with no class subfolders is also a configuration error.
	emptyRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(emptyRoot, "train"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(emptyRoot, "test"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	cfg := miniConfig(emptyRoot)
	_, err := NewTaskBatchSampler(cfg)
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError for empty train dir, got %v", err)
	}
}

func TestTestModeStub(t *testing.T) {
	root := makeMiniRoot(t, 10, 3, 4)
	cfg := miniConfig(root)
	cfg.Mode = ModeTest
	s, err := NewTaskBatchSampler(cfg)
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}
	batch, err := s.Batch()
	if err != nil {
		t.Fatalf("test-mode Batch returned error: %v", err)
	}
	if batch != nil {
		t.Fatalf("test-mode Batch returned a batch: %+v", batch)
	}
}

func TestKeepImageOrder(t *testing.T) {
	root := makeMiniRoot(t, 10, 1, 6)
	cfg := miniConfig(root)
	cfg.KeepImageOrder = true
	s, err := NewTaskBatchSampler(cfg)
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}
	// Iteration order only: the split invariants hold either way.
	tasks, err := s.samplePlan()
	if err != nil {
		t.Fatalf("samplePlan failed: %v", err)
	}
	for _, task := range tasks {
		for _, class := range task {
			if len(class.support) != 1 || len(class.query) != 3 {
				t.Fatalf("class %s split %d/%d, want 1/3", class.folder, len(class.support), len(class.query))
			}
		}
	}
}
