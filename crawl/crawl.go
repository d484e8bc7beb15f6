package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	extr "github.com/nci/ndelta/crawl/extractor"
	"github.com/nci/ndelta/processor"
)

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func printScenes(w io.Writer, scenes []*extr.Scene) error {
	enc := json.NewEncoder(w)
	for _, scene := range scenes {
		if err := enc.Encode(scene); err != nil {
			return err
		}
	}
	return nil
}

// registerScenes puts every scene to the metadata API and returns
// how many were registered before the first failure.
func registerScenes(ctx context.Context, mas *processor.MASCollection, scenes []*extr.Scene, verbose bool) (int, error) {
	for i, scene := range scenes {
		img, err := processor.ImageFromScene(scene)
		if err != nil {
			return i, err
		}
		if err = mas.PutImage(ctx, img); err != nil {
			return i, err
		}
		if verbose {
			log.Printf("registered %s/%s", img.Dataset, img.ID)
		}
	}
	return len(scenes), nil
}

func main() {
	conc := flag.Int("conc", 8, "Number of directories crawled concurrently.")
	pattern := flag.String("pattern", "", "Boolean expression over path and type selecting the entries to visit.")
	masAddress := flag.String("mas", "", "Metadata API address; scenes are registered there instead of printed.")
	verbose := flag.Bool("verbose", false, "Verbose mode for more outputs.")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Please provide the root directory of the scene catalogue")
	}

	scenes, err := extr.CrawlScenes(flag.Arg(0), *conc, *pattern)
	if err != nil {
		if len(scenes) == 0 {
			log.Fatal(err)
		}
		log.Printf("crawl errors:\n%v", err)
	}

	if len(*masAddress) == 0 {
		ensure(printScenes(os.Stdout, scenes))
		return
	}

	n, err := registerScenes(context.Background(), processor.NewMASCollection(*masAddress), scenes, *verbose)
	log.Printf("%d of %d scenes registered", n, len(scenes))
	ensure(err)
}
