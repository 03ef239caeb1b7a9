// Command episodegen samples few-shot episodes from an image dataset and
// prints the class-folder-to-label map of each generated meta-batch. It can
// also pre-generate episodes to a binary file for fast replay during
// training, and plot how often each class was sampled.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/Noofbiz/metaBowl/episodes"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func main() {
	dataset := flag.String("dataset", "miniimagenet", "dataset variant: miniimagenet or omniglot")
	root := flag.String("root", "dataset/miniImagenet", "dataset root directory")
	mode := flag.String("mode", "train", "sampler mode: train or test")
	nWay := flag.Int("n-way", 5, "number of classes per task")
	kShot := flag.Int("k-shot", 1, "support images per class")
	kQuery := flag.Int("k-query", 15, "query images per class (forced to k-shot for omniglot)")
	metaBatch := flag.Int("meta-batch", 4, "tasks per meta-batch")
	batches := flag.Int("batches", 1, "number of meta-batches to generate")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	pregenOut := flag.String("pregen", "", "if set, write pre-generated episodes to this file instead of printing label maps")
	plotOut := flag.String("plot", "", "if set, write a class-usage bar chart (png/svg/pdf) to this path")
	flag.Parse()

	sampler, err := episodes.NewTaskBatchSampler(episodes.Config{
		Dataset:       *dataset,
		Root:          *root,
		Mode:          *mode,
		NWay:          *nWay,
		KShot:         *kShot,
		KQuery:        *kQuery,
		MetaBatchSize: *metaBatch,
		Seed:          *seed,
	})
	if err != nil {
		log.Fatalf("failed to create sampler: %v", err)
	}

	if *pregenOut != "" {
		if err := pregenerate(sampler, *batches, *pregenOut); err != nil {
			log.Fatalf("pre-generation failed: %v", err)
		}
		fmt.Printf("wrote %d meta-batches to %s\n", *batches, *pregenOut)
		return
	}

	usage := make(map[string]int)
	for i := 0; i < *batches; i++ {
		batch, err := sampler.Batch()
		if err != nil {
			log.Fatalf("batch %d failed: %v", i+1, err)
		}
		if batch == nil {
			fmt.Println("test mode: held-out pool loaded, episode generation not implemented")
			return
		}
		fmt.Printf("batch %d: %d support images, %d query images\n", i+1, batch.Support.Count, batch.Query.Count)
		if err := sampler.PrintLabelMap(os.Stdout); err != nil {
			log.Fatalf("failed to print label map: %v", err)
		}
		for _, task := range batch.LabelMap {
			for _, ref := range task {
				usage[sampler.Variant().DisplayName(ref.Folder)]++
			}
		}
	}

	if *plotOut != "" {
		if err := plotClassUsage(usage, *plotOut); err != nil {
			log.Fatalf("failed to plot class usage: %v", err)
		}
		fmt.Printf("wrote class-usage chart to %s\n", *plotOut)
	}
}

func pregenerate(sampler *episodes.TaskBatchSampler, batches int, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := sampler.Save(batches, true, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// plotClassUsage renders a bar chart of how many times each class folder was
// used across the generated batches.
func plotClassUsage(usage map[string]int, outPath string) error {
	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Strings(names)
	values := make(plotter.Values, len(names))
	for i, name := range names {
		values[i] = float64(usage[name])
	}

	p := plot.New()
	p.Title.Text = "Class usage across generated batches"
	p.Y.Label.Text = "times sampled"
	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return err
	}
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 1.2
	p.X.Tick.Label.XAlign = -0.9
	return p.Save(8*vg.Inch, 4*vg.Inch, outPath)
}
