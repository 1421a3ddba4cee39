// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command cubedemo renders the rotating cube headlessly and optionally
// saves the last frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/cube"
)

func main() {
	var (
		backend = flag.String("backend", "vulkan", "GPU backend: vulkan or noop")
		width   = flag.Int("width", 1600, "target width")
		height  = flag.Int("height", 900, "target height")
		frames  = flag.Int("frames", 0, "frames to render (0 = until interrupted)")
		buffers = flag.Int("buffers", 2, "presentation buffers")
		vsync   = flag.Int("vsync", 1, "vertical blanks per present")
		timeout = flag.Duration("timeout", 5*time.Second, "fence wait timeout (0 = wait forever)")
		meshArg = flag.String("mesh", "cube", "mesh: cube or hexprism")
		seed    = flag.Uint64("seed", 1, "vertex color seed")
		spin    = flag.Float64("spin", 2, "simulated horizontal drag in pixels per tick")
		spirv   = flag.Bool("spirv", false, "precompile the shader to SPIR-V")
		output  = flag.String("capture", "", "save the last frame (.png, .bmp or .tiff)")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	cube.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	b, err := cube.ParseBackend(*backend)
	if err != nil {
		log.Fatalf("Invalid backend: %v", err)
	}
	kind, err := cube.ParseMesh(*meshArg)
	if err != nil {
		log.Fatalf("Invalid mesh: %v", err)
	}

	r, err := cube.New(
		cube.WithBackend(b),
		cube.WithSize(*width, *height),
		cube.WithBufferCount(*buffers),
		cube.WithSyncInterval(*vsync),
		cube.WithFenceTimeout(*timeout),
		cube.WithMesh(kind),
		cube.WithSeed(*seed),
		cube.WithSPIRV(*spirv),
	)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *spin != 0 {
		go drive(ctx, r, float32(*spin))
	}

	runErr := r.Run(ctx, *frames)
	if runErr == nil && *output != "" {
		runErr = capture(r, *output)
	}

	s := r.Stats()
	if err := r.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		log.Fatalf("Render failed: %v", runErr)
	}
	log.Printf("Rendered %d frames (last fence %d, last frame %v, %d/%d bytes in %d buffers)",
		s.Frames, s.LastFenceValue, s.LastFrame, s.MemoryUsed, s.MemoryTotal, s.BufferCount)
}

// drive feeds a steady horizontal drag, standing in for pointer input.
func drive(ctx context.Context, r *cube.Renderer, dx float32) {
	t := time.NewTicker(16 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.HandleDrag(dx, 0)
		}
	}
}

func capture(r *cube.Renderer, path string) error {
	img, err := r.Capture()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f, path, img); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("Frame saved to %s (%dx%d)", path, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}

func encode(f *os.File, path string, img image.Image) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return png.Encode(f, img)
	case ".bmp":
		return bmp.Encode(f, img)
	case ".tif", ".tiff":
		return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported capture format %q", ext)
	}
}
