package report

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	apperrors "github.com/medflow/medinsight/pkg/errors"
	"github.com/medflow/medinsight/pkg/logger"
)

// ErrNotMapping is wrapped by the contract violation returned for reports whose
// top level is not a mapping
var ErrNotMapping = errors.New("insight report must be a mapping at the top level")

const (
	fileTimestampLayout = "20060102_150405"
	generatedPrefix     = "medical_report_"
)

// generatedName matches the names resolve hands out
var generatedName = regexp.MustCompile(`^medical_report_\d{8}_\d{6}(_\d+)?\.pdf$`)

// Options configures a Renderer
type Options struct {
	// OutputDir receives artifacts whose destination is not given or is relative
	OutputDir string
	// Title is used when Render is called with an empty title
	Title    string
	MaxDepth int
	// Now is the clock, overridable in tests
	Now func() time.Time
}

// Renderer writes insight reports as PDF artifacts. Each call owns its block
// list and output file; the only shared state is the set of names generated
// within the current second.
type Renderer struct {
	outputDir string
	title     string
	maxDepth  int
	now       func() time.Time
	log       *logger.Logger

	mu         sync.Mutex
	issuedBase string
	issued     map[string]struct{}
}

// NewRenderer creates a renderer
func NewRenderer(opts Options, log *logger.Logger) *Renderer {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Renderer{
		outputDir: opts.OutputDir,
		title:     opts.Title,
		maxDepth:  opts.MaxDepth,
		now:       opts.Now,
		log:       log.WithComponent("report-renderer"),
		issued:    make(map[string]struct{}),
	}
}

// Render lays out the report and writes it as a PDF to destination, returning
// the absolute path of the artifact. An empty destination gets a name derived
// from the current time. The artifact only appears at the path on success.
//
// Errors are *errors.AppError: CONTRACT_VIOLATION when the report is not a
// mapping (nothing is written), RENDER_FAILURE when encoding, building or
// writing the document fails.
func (r *Renderer) Render(report Value, destination, title string) (string, error) {
	doc, err := r.layout(report, title)
	if err != nil {
		return "", err
	}

	path, err := r.resolve(destination, doc.GeneratedAt)
	if err != nil {
		r.log.Error().Err(err).Str("destination", destination).Msg("failed to resolve report path")
		return "", apperrors.RenderFailure("failed to resolve report destination", err)
	}

	if err := writeAtomic(path, doc); err != nil {
		r.log.Error().Err(err).Str("path", path).Msg("failed to generate PDF")
		return "", apperrors.RenderFailure("failed to generate report PDF", err)
	}

	r.log.Info().
		Str("path", path).
		Int("blocks", len(doc.Blocks)).
		Int("sections", report.Len()).
		Msg("insight report rendered")

	return path, nil
}

// Build renders the report in memory and returns the PDF together with the
// file name a generated artifact would carry. Nothing is written to disk.
func (r *Renderer) Build(report Value, title string) ([]byte, string, error) {
	doc, err := r.layout(report, title)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := WritePDF(doc, &buf); err != nil {
		r.log.Error().Err(err).Msg("failed to generate PDF")
		return nil, "", apperrors.RenderFailure("failed to generate report PDF", err)
	}

	r.log.Info().
		Int("bytes", buf.Len()).
		Int("blocks", len(doc.Blocks)).
		Msg("insight report built")

	return buf.Bytes(), generatedPrefix + doc.GeneratedAt.Format(fileTimestampLayout) + ".pdf", nil
}

// BuildJSON decodes a JSON insight report and builds it in memory
func (r *Renderer) BuildJSON(data []byte, title string) ([]byte, string, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, "", apperrors.ContractViolation("insight report is not valid JSON", err)
	}
	return r.Build(v, title)
}

func (r *Renderer) layout(report Value, title string) (*Document, error) {
	if title == "" {
		title = r.title
	}
	doc, err := Layout(report, title, r.now(), r.maxDepth)
	if err != nil {
		r.log.Warn().Err(err).Msg("rejected insight report")
		return nil, apperrors.ContractViolation("insight report must be a JSON object", err)
	}
	return doc, nil
}

// RenderJSON decodes a JSON insight report and renders it
func (r *Renderer) RenderJSON(data []byte, destination, title string) (string, error) {
	v, err := Parse(data)
	if err != nil {
		return "", apperrors.ContractViolation("insight report is not valid JSON", err)
	}
	return r.Render(v, destination, title)
}

// resolve returns the absolute artifact path for a destination
func (r *Renderer) resolve(destination string, at time.Time) (string, error) {
	if destination != "" {
		if !filepath.IsAbs(destination) && r.outputDir != "" {
			destination = filepath.Join(r.outputDir, destination)
		}
		return filepath.Abs(destination)
	}

	dir := r.dir()
	base := generatedPrefix + at.Format(fileTimestampLayout)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Names from earlier seconds can no longer collide with new ones
	if base != r.issuedBase {
		clear(r.issued)
		r.issuedBase = base
	}

	for n := 0; ; n++ {
		name := base + ".pdf"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.pdf", base, n)
		}
		path, err := filepath.Abs(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		if _, taken := r.issued[path]; taken {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		r.issued[path] = struct{}{}
		return path, nil
	}
}

// Artifact returns the path of a generated artifact in the output directory.
// Names that resolve never hands out are treated as unknown.
func (r *Renderer) Artifact(name string) (string, error) {
	if !generatedName.MatchString(name) {
		return "", apperrors.NotFound("report")
	}
	path, err := filepath.Abs(filepath.Join(r.dir(), name))
	if err != nil {
		return "", apperrors.Internal("failed to resolve report path")
	}
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return "", apperrors.NotFound("report")
	}
	return path, nil
}

// Sweep deletes PDF artifacts and stale temp files in the output directory
// that were last modified before now minus retention. It returns how many
// files were removed.
func (r *Renderer) Sweep(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(r.dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read output directory: %w", err)
	}

	cutoff := r.now().Add(-retention)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, ".pdf") && !strings.HasSuffix(name, ".pdf.tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(r.dir(), name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn().Err(err).Str("path", path).Msg("failed to remove expired report")
			continue
		}
		removed++
	}

	if removed > 0 {
		r.log.Info().Int("files", removed).Dur("retention", retention).Msg("expired reports removed")
	}
	return removed, nil
}

func (r *Renderer) dir() string {
	if r.outputDir == "" {
		return "."
	}
	return r.outputDir
}

// writeAtomic renders into a temporary file next to path and renames it into
// place, so a failed render never leaves a readable artifact at path
func writeAtomic(path string, doc *Document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.pdf.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := WritePDF(doc, tmp); err != nil {
		return fmt.Errorf("build PDF: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync PDF: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close PDF: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		committed = true
		return fmt.Errorf("move PDF into place: %w", err)
	}
	committed = true
	return nil
}
