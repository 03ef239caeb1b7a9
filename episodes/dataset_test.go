package episodes

import (
	"io"
	"reflect"
	"testing"
)

func TestEpisodeDatasetYield(t *testing.T) {
	root := makeMiniRoot(t, 12, 1, 6)
	s, err := NewTaskBatchSampler(miniConfig(root))
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}
	ds := NewEpisodeDataset("episodes-train", s)
	if ds.Name() != "episodes-train" {
		t.Fatalf("unexpected dataset name %q", ds.Name())
	}

	_, inputs, labels, err := ds.Yield()
	if err != nil {
		t.Fatalf("Yield failed: %v", err)
	}
	if len(inputs) != 2 || len(labels) != 2 {
		t.Fatalf("Yield returned %d inputs and %d labels, want 2 and 2", len(inputs), len(labels))
	}

	wantSupportImages := []int{10, 84, 84, 3}
	if got := inputs[0].Shape().Dimensions; !reflect.DeepEqual(got, wantSupportImages) {
		t.Fatalf("support image shape = %v, want %v", got, wantSupportImages)
	}
	wantQueryImages := []int{30, 84, 84, 3}
	if got := inputs[1].Shape().Dimensions; !reflect.DeepEqual(got, wantQueryImages) {
		t.Fatalf("query image shape = %v, want %v", got, wantQueryImages)
	}
	wantSupportLabels := []int{10, 5}
	if got := labels[0].Shape().Dimensions; !reflect.DeepEqual(got, wantSupportLabels) {
		t.Fatalf("support label shape = %v, want %v", got, wantSupportLabels)
	}
	wantQueryLabels := []int{30, 5}
	if got := labels[1].Shape().Dimensions; !reflect.DeepEqual(got, wantQueryLabels) {
		t.Fatalf("query label shape = %v, want %v", got, wantQueryLabels)
	}
}

func TestEpisodeDatasetTestModeEOF(t *testing.T) {
	root := makeMiniRoot(t, 10, 3, 4)
	cfg := miniConfig(root)
	cfg.Mode = ModeTest
	s, err := NewTaskBatchSampler(cfg)
	if err != nil {
		t.Fatalf("NewTaskBatchSampler failed: %v", err)
	}
	ds := NewEpisodeDataset("episodes-test", s)
	_, _, _, err = ds.Yield()
	if err != io.EOF {
		t.Fatalf("test-mode Yield returned %v, want io.EOF", err)
	}
}
