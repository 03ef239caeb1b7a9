package episodes

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// imageExtensions are the file types treated as class images when listing a
// class folder.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
}

// listClassDirs returns the absolute paths of the subdirectories of dir, in
// the deterministic order os.ReadDir provides.
func listClassDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirs = append(dirs, filepath.Join(dir, entry.Name()))
	}
	return dirs, nil
}

// listImages returns the image files directly inside folder.
func listImages(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		images = append(images, filepath.Join(folder, entry.Name()))
	}
	return images, nil
}

// discoverPreSplit loads class folders from pre-split train/ and test/
// directories under root (the miniimagenet layout).
func discoverPreSplit(root string) (train, heldOut []string, err error) {
	train, err = requireClassDirs(filepath.Join(root, "train"))
	if err != nil {
		return nil, nil, err
	}
	heldOut, err = requireClassDirs(filepath.Join(root, "test"))
	if err != nil {
		return nil, nil, err
	}
	return train, heldOut, nil
}

func requireClassDirs(dir string) ([]string, error) {
	dirs, err := listClassDirs(dir)
	if err != nil {
		return nil, &ConfigurationError{Path: dir, Reason: "cannot list class folders", Err: err}
	}
	if len(dirs) == 0 {
		return nil, &ConfigurationError{Path: dir, Reason: "no class folders found"}
	}
	return dirs, nil
}

// discoverTwoLevel loads class folders from a two-level family/character
// hierarchy under root (the omniglot layout), then partitions them with a
// fixed-seed shuffle and positional split. The split generator is dedicated
// so the partition stays stable regardless of the sampler's own seed.
func discoverTwoLevel(root string) (train, heldOut []string, err error) {
	families, err := listClassDirs(root)
	if err != nil {
		return nil, nil, &ConfigurationError{Path: root, Reason: "cannot list family folders", Err: err}
	}
	var characters []string
	for _, family := range families {
		chars, err := listClassDirs(family)
		if err != nil {
			return nil, nil, &ConfigurationError{Path: family, Reason: "cannot list character folders", Err: err}
		}
		characters = append(characters, chars...)
	}
	if len(characters) == 0 {
		return nil, nil, &ConfigurationError{Path: root, Reason: "no class folders found"}
	}
	split := rand.New(rand.NewSource(omniglotSplitSeed))
	split.Shuffle(len(characters), func(i, j int) {
		characters[i], characters[j] = characters[j], characters[i]
	})
	cut := omniglotSplitCount
	if cut > len(characters) {
		cut = len(characters)
	}
	return characters[:cut], characters[cut:], nil
}
