// Package media shells out to ffmpeg and mutool for the frame and page
// work the analyzers and redactors cannot do in pure Go.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Toolbox wraps the external binaries. Paths default to looking the
// tools up on PATH.
type Toolbox struct {
	FFmpegPath string
	MutoolPath string
}

func NewToolbox(ffmpegPath, mutoolPath string) *Toolbox {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if mutoolPath == "" {
		mutoolPath = "mutool"
	}
	return &Toolbox{FFmpegPath: ffmpegPath, MutoolPath: mutoolPath}
}

// Frame is one sampled video frame rendered to PNG. Index is the frame
// number in the source stream, not the sample ordinal.
type Frame struct {
	Index int
	PNG   []byte
}

// Box is a pixel-space rectangle to black out. A nil Frame applies the
// box to every frame.
type Box struct {
	X, Y, Width, Height int
	Frame               *int
}

// ExtractFrames samples every step-th frame of the video, up to
// maxFrames samples.
func (t *Toolbox) ExtractFrames(ctx context.Context, video io.Reader, step, maxFrames int) ([]Frame, error) {
	if step < 1 {
		step = 1
	}
	if maxFrames < 1 {
		maxFrames = 1
	}

	dir, cleanup, err := workDir("frames")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input := filepath.Join(dir, "input")
	if err := spool(input, video); err != nil {
		return nil, err
	}

	outPattern := filepath.Join(dir, "frame_%06d.png")
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vf", fmt.Sprintf("select=not(mod(n\\,%d))", step),
		"-vsync", "vfr",
		"-frames:v", fmt.Sprintf("%d", maxFrames),
		outPattern,
	}
	if err := t.run(ctx, t.FFmpegPath, args...); err != nil {
		return nil, err
	}

	names, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(names)

	frames := make([]Frame, 0, len(names))
	for i, name := range names {
		raw, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read frame %s: %w", filepath.Base(name), err)
		}
		frames = append(frames, Frame{Index: i * step, PNG: raw})
	}
	return frames, nil
}

// RedactVideo re-encodes the video with the boxes filled black. The
// output is always MP4.
func (t *Toolbox) RedactVideo(ctx context.Context, video io.Reader, boxes []Box) ([]byte, error) {
	if len(boxes) == 0 {
		return nil, fmt.Errorf("no boxes to redact")
	}

	dir, cleanup, err := workDir("redact")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input := filepath.Join(dir, "input")
	if err := spool(input, video); err != nil {
		return nil, err
	}
	output := filepath.Join(dir, "output.mp4")

	filters := make([]string, 0, len(boxes))
	for _, b := range boxes {
		f := fmt.Sprintf("drawbox=x=%d:y=%d:w=%d:h=%d:color=black:t=fill", b.X, b.Y, b.Width, b.Height)
		if b.Frame != nil {
			f += fmt.Sprintf(":enable=eq(n\\,%d)", *b.Frame)
		}
		filters = append(filters, f)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vf", strings.Join(filters, ","),
		"-an",
		"-y", output,
	}
	if err := t.run(ctx, t.FFmpegPath, args...); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("read redacted video: %w", err)
	}
	return out, nil
}

// RasterizePDF renders every page to a PNG at the given DPI.
func (t *Toolbox) RasterizePDF(ctx context.Context, doc io.Reader, dpi int) ([][]byte, error) {
	if dpi < 72 {
		dpi = 150
	}

	dir, cleanup, err := workDir("raster")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input := filepath.Join(dir, "input.pdf")
	if err := spool(input, doc); err != nil {
		return nil, err
	}

	outPattern := filepath.Join(dir, "page_%06d.png")
	args := []string{
		"draw",
		"-r", fmt.Sprintf("%d", dpi),
		"-o", outPattern,
		input,
	}
	if err := t.run(ctx, t.MutoolPath, args...); err != nil {
		return nil, err
	}

	names, err := filepath.Glob(filepath.Join(dir, "page_*.png"))
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	sort.Strings(names)

	pages := make([][]byte, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", filepath.Base(name), err)
		}
		pages = append(pages, raw)
	}
	return pages, nil
}

// ImagesToPDF assembles page rasters back into a single PDF, in slice
// order.
func (t *Toolbox) ImagesToPDF(ctx context.Context, pages [][]byte) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to assemble")
	}

	dir, cleanup, err := workDir("assemble")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	names := make([]string, 0, len(pages))
	for i, page := range pages {
		name := filepath.Join(dir, fmt.Sprintf("page_%06d.png", i+1))
		if err := os.WriteFile(name, page, 0o644); err != nil {
			return nil, fmt.Errorf("write page %d: %w", i+1, err)
		}
		names = append(names, name)
	}

	output := filepath.Join(dir, "output.pdf")
	args := append([]string{"convert", "-o", output}, names...)
	if err := t.run(ctx, t.MutoolPath, args...); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("read assembled pdf: %w", err)
	}
	return out, nil
}

func (t *Toolbox) run(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, msg)
		}
		return fmt.Errorf("%s: %w", filepath.Base(bin), err)
	}
	return nil
}

func workDir(prefix string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "pv-"+prefix+"-*")
	if err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func spool(path string, data io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("spool input: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("spool input: %w", err)
	}
	return nil
}
