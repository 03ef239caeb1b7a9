package episodes

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Variant bundles the per-dataset settings that used to be scattered across
// dataset-name branches: image geometry, how class folders are discovered on
// disk, and dataset-specific quirks. It is resolved once at construction.
type Variant struct {
	Name      string
	ImageSize int
	Channels  int

	// EqualQuery forces KQuery to KShot at construction (historical omniglot
	// behavior, kept as-is).
	EqualQuery bool

	// DeepNames selects family/character display names in the label map
	// instead of the folder base name.
	DeepNames bool

	discover func(root string) (train, heldOut []string, err error)
}

// The omniglot character folders are shuffled with a fixed seed and split at
// a fixed position, reproducing the historical train/held-out partition.
const (
	omniglotSplitSeed  = 9314
	omniglotSplitCount = 1400
)

var variants = map[string]Variant{
	"miniimagenet": {
		Name:      "miniimagenet",
		ImageSize: 84,
		Channels:  3,
		discover:  discoverPreSplit,
	},
	"omniglot": {
		Name:       "omniglot",
		ImageSize:  28,
		Channels:   1,
		EqualQuery: true,
		DeepNames:  true,
		discover:   discoverTwoLevel,
	},
}

// ResolveVariant maps a dataset name to its Variant.
func ResolveVariant(name string) (Variant, error) {
	v, ok := variants[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Variant{}, &ConfigurationError{Reason: fmt.Sprintf("unknown dataset variant %q", name)}
	}
	return v, nil
}

// DisplayName renders a class folder the way the variant's label map prints
// it: base name, or family/character for two-level layouts.
func (v Variant) DisplayName(folder string) string {
	if v.DeepNames {
		return filepath.Join(filepath.Base(filepath.Dir(folder)), filepath.Base(folder))
	}
	return filepath.Base(folder)
}
