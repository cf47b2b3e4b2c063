// Command sensorlog-example logs random point clouds, a posed pinhole camera
// and an image to a sensorlog viewer, or saves them to a recording.
//
// Usage:
//
//	go run ./cmd/sensorlog-example [flags]
//
// Flags:
//
//	-config  Optional JSON config file (see internal/config.ExampleConfig)
//	-addr    Viewer address (default: localhost:9876)
//	-save    Save to a .sllog recording instead of streaming
//	-points  Number of random points per cloud (default: 1000)
//	-image   Image to log (default: sensorlog-logo.png)
//	-seed    Random seed (default: time seeded)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/sensorlog/internal/config"
	"github.com/banshee-data/sensorlog/internal/demo"
	"github.com/banshee-data/sensorlog/internal/rec"
	"github.com/banshee-data/sensorlog/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Optional JSON config file")
	addr := flag.String("addr", "", "Viewer address (overrides config)")
	save := flag.String("save", "", "Save to a recording directory instead of streaming")
	points := flag.Int("points", 0, "Number of random points per cloud (overrides config)")
	imagePath := flag.String("image", "", "Image to log (overrides config)")
	seed := flag.Uint64("seed", 0, "Random seed (overrides config)")
	borrowImage := flag.Bool("borrow-image", false, "Log the image without copying it")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.DefaultExampleConfig()
	if *configPath != "" {
		loaded, err := config.LoadExampleConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the config.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.ViewerAddr = addr
		case "save":
			cfg.SavePath = save
		case "points":
			cfg.NumPoints = points
		case "image":
			cfg.ImagePath = imagePath
		case "seed":
			cfg.Seed = seed
		case "borrow-image":
			cfg.BorrowImage = borrowImage
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	stream := rec.NewRecordingStream(cfg.GetAppID())

	var recorder *rec.Recorder
	if path := cfg.GetSavePath(); path != "" {
		r, err := stream.Save(path, cfg.RecorderConfig())
		if err != nil {
			log.Fatalf("Failed to create recording: %v", err)
		}
		recorder = r
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GetConnectTimeout())
		err := stream.Connect(ctx, cfg.GetViewerAddr())
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to viewer at %s: %v", cfg.GetViewerAddr(), err)
		}
	}

	err := demo.Run(context.Background(), stream, demo.OptionsFromConfig(cfg))
	var loadErr *demo.ImageLoadError
	if errors.As(err, &loadErr) {
		fmt.Printf("Could not read the image: %s\n", loadErr.Path)
		stream.Close()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to log example data: %v", err)
	}

	if err := stream.Close(); err != nil {
		log.Fatalf("Failed to close recording stream: %v", err)
	}
	if recorder != nil {
		log.Printf("Saved %d messages to %s", recorder.MessageCount(), recorder.Path())
	}
}
