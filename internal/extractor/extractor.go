// Package extractor runs the external Procreate inspection script. Every call
// is a separate subprocess that prints a single JSON object on stdout.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
)

var commandContext = exec.CommandContext

var (
	// ErrTimeout means the subprocess was killed after exceeding its deadline.
	ErrTimeout = errors.New("extractor timed out")
	// ErrExtractor covers non-zero exits and unusable output.
	ErrExtractor = errors.New("extractor failed")
)

// Metadata is the result of the inspect command.
type Metadata struct {
	ColorProfile     *string `json:"color_profile"`
	AppVersion       *string `json:"procreate_version"`
	SourceCreatedAt  *int64  `json:"created_at"`
	SourceModifiedAt *int64  `json:"updated_at"`
	ThumbnailPath    *string `json:"thumbnail_path"`
	Orientation      string  `json:"orientation"`
	SourcePath       string  `json:"source_path"`
	FileHash         string  `json:"file_hash"`
	CanvasWidth      int     `json:"canvas_width"`
	CanvasHeight     int     `json:"canvas_height"`
	DPI              int     `json:"dpi"`
	LayerCount       int     `json:"layer_count"`
	TimeSpent        int64   `json:"time_spent"`
}

// Thumbnail returns the extracted thumbnail path, or "" when the archive had
// none.
func (m *Metadata) Thumbnail() string {
	if m.ThumbnailPath == nil {
		return ""
	}
	return strings.TrimSpace(*m.ThumbnailPath)
}

type embeddingResult struct {
	Vector     domain.Vector `json:"vector"`
	SourcePath string        `json:"source_path"`
	Dimensions int           `json:"dimensions"`
}

// ClearTempResult reports how many stale temp thumbnails were removed.
type ClearTempResult struct {
	TempDir string `json:"temp_dir"`
	Removed int    `json:"removed"`
}

// Option configures the CLI client.
type Option func(*CLI)

func WithPython(python string) Option {
	return func(c *CLI) {
		if python != "" {
			c.python = python
		}
	}
}

func WithScript(script string) Option {
	return func(c *CLI) {
		if script != "" {
			c.script = script
		}
	}
}

// WithTimeouts overrides the metadata and embedding deadlines. Zero values
// keep the defaults.
func WithTimeouts(metadata, vector time.Duration) Option {
	return func(c *CLI) {
		if metadata > 0 {
			c.metadataTimeout = metadata
		}
		if vector > 0 {
			c.vectorTimeout = vector
		}
	}
}

// CLI wraps the extractor script.
type CLI struct {
	python          string
	script          string
	metadataTimeout time.Duration
	vectorTimeout   time.Duration
}

func NewCLI(opts ...Option) *CLI {
	c := &CLI{
		python:          constants.DefaultExtractorPython,
		script:          constants.DefaultExtractorScript,
		metadataTimeout: constants.DefaultMetadataTimeout,
		vectorTimeout:   constants.DefaultVectorTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Inspect extracts canvas metadata, the content hash and a temporary thumbnail
// from a .procreate archive.
func (c *CLI) Inspect(ctx context.Context, path string) (*Metadata, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path required")
	}

	var meta Metadata
	if err := c.run(ctx, c.metadataTimeout, &meta, "inspect", path); err != nil {
		return nil, err
	}
	if strings.TrimSpace(meta.FileHash) == "" {
		return nil, fmt.Errorf("%w: inspect %s: empty file hash", ErrExtractor, path)
	}
	return &meta, nil
}

// Embed computes the image embedding for a thumbnail.
func (c *CLI) Embed(ctx context.Context, imagePath string) (domain.Vector, error) {
	if strings.TrimSpace(imagePath) == "" {
		return nil, errors.New("image path required")
	}

	var res embeddingResult
	if err := c.run(ctx, c.vectorTimeout, &res, "vector", imagePath); err != nil {
		return nil, err
	}
	if len(res.Vector) == 0 {
		return nil, fmt.Errorf("%w: vector %s: empty embedding", ErrExtractor, imagePath)
	}
	if res.Dimensions != 0 && res.Dimensions != len(res.Vector) {
		return nil, fmt.Errorf("%w: vector %s: reported %d dimensions, got %d",
			ErrExtractor, imagePath, res.Dimensions, len(res.Vector))
	}
	return res.Vector, nil
}

// ClearTemp removes temp thumbnails older than days.
func (c *CLI) ClearTemp(ctx context.Context, days int) (*ClearTempResult, error) {
	if days < 0 {
		return nil, fmt.Errorf("days must not be negative, got %d", days)
	}
	var res ClearTempResult
	if err := c.run(ctx, c.metadataTimeout, &res, "clear-temp", strconv.Itoa(days)); err != nil {
		return nil, err
	}
	return &res, nil
}

// Debug dumps the archive entries and raw document plist of a .procreate file.
// The script prints a human-readable report rather than JSON, so the output is
// returned as is.
func (c *CLI) Debug(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path required")
	}
	out, err := c.exec(ctx, c.metadataTimeout, "debug", path)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *CLI) run(ctx context.Context, timeout time.Duration, out interface{}, args ...string) error {
	stdout, err := c.exec(ctx, timeout, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(bytes.TrimSpace(stdout), out); err != nil {
		return fmt.Errorf("%w: %s: malformed output: %v", ErrExtractor, args[0], err)
	}
	return nil
}

func (c *CLI) exec(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdArgs := append([]string{c.script}, args...)
	cmd := commandContext(ctx, c.python, cmdArgs...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, args[0], timeout)
	}
	if err != nil {
		if msg := trimStderr(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s: %v: %s", ErrExtractor, args[0], err, msg)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrExtractor, args[0], err)
	}
	return stdout.Bytes(), nil
}

// trimStderr keeps the tail of stderr, where Python tracebacks end with the
// actual exception.
func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > constants.ExtractorStderrMaxSize {
		s = "..." + s[len(s)-constants.ExtractorStderrMaxSize:]
	}
	return s
}
