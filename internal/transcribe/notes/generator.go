package notes

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/output"
)

// Completer turns a prompt into model output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config configures a Generator.
type Config struct {
	// Prompts override DefaultPrompts per mode.
	Prompts map[Mode]string
	// OutputDirs place a mode's artifacts elsewhere. Relative paths are
	// joined to the transcript directory.
	OutputDirs map[Mode]string
	// Ext is the artifact extension (default "md").
	Ext string
	// Docx also writes a .docx copy of each artifact.
	Docx bool
}

// Generator writes one notes artifact per mode.
type Generator struct {
	completer Completer
	config    Config
	docx      *DocxExporter
	log       logging.Logger
}

// NewGenerator creates a Generator. A nil logger discards output.
func NewGenerator(c Completer, cfg Config, log logging.Logger) *Generator {
	if log == nil {
		log = logging.Nop()
	}
	cfg.Ext = output.NormalizeExt(cfg.Ext)
	g := &Generator{completer: c, config: cfg, log: log}
	if cfg.Docx {
		g.docx = NewDocxExporter()
	}
	return g
}

// Prompt returns the prompt used for mode.
func (g *Generator) Prompt(mode Mode) (string, error) {
	if p := strings.TrimSpace(g.config.Prompts[mode]); p != "" {
		return p, nil
	}
	if p, ok := DefaultPrompts[mode]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMode, mode)
}

// OutputDir resolves the folder for a mode's artifacts.
func (g *Generator) OutputDir(mode Mode, baseDir string) string {
	dir := strings.TrimSpace(g.config.OutputDirs[mode])
	switch {
	case dir == "":
		return baseDir
	case filepath.IsAbs(dir):
		return dir
	default:
		return filepath.Join(baseDir, dir)
	}
}

// ArtifactPath is where mode's notes for stem are written.
func (g *Generator) ArtifactPath(mode Mode, stem, baseDir string) string {
	return output.ModeArtifactPath(g.OutputDir(mode, baseDir), stem, string(mode), g.config.Ext)
}

// GenerateForModes writes notes for each mode in sorted order and returns
// the artifact path of every mode that exists afterwards. A failing mode is
// logged and left out; the others still run.
func (g *Generator) GenerateForModes(ctx context.Context, content string, modes ModeSet, stem, baseDir string, reprocess bool) map[Mode]string {
	written := make(map[Mode]string, len(modes))

	for _, mode := range modes.Sorted() {
		if ctx.Err() != nil {
			break
		}

		path := g.ArtifactPath(mode, stem, baseDir)
		if !reprocess && output.Exists(path) {
			g.log.Info("skipping notes, artifact already exists",
				logging.String("mode", string(mode)),
				logging.String("output", path))
			written[mode] = path
			continue
		}

		if err := g.generate(ctx, mode, content, stem, path); err != nil {
			g.log.Error("failed to generate notes", err,
				logging.String("mode", string(mode)),
				logging.String("stem", stem))
			continue
		}
		written[mode] = path
	}

	return written
}

func (g *Generator) generate(ctx context.Context, mode Mode, content, stem, path string) error {
	prompt, err := g.Prompt(mode)
	if err != nil {
		return err
	}

	start := time.Now()
	text, err := g.completer.Complete(ctx, BuildPrompt(prompt, content))
	if err != nil {
		return fmt.Errorf("completing %s notes: %w", mode, err)
	}
	text = strings.TrimSpace(text) + "\n"

	if err := output.Write(context.WithoutCancel(ctx), path, text); err != nil {
		return err
	}
	g.log.Info("notes saved",
		logging.String("mode", string(mode)),
		logging.String("output", path),
		logging.Duration("elapsed", time.Since(start).Round(time.Millisecond)))

	if g.docx != nil {
		docxPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".docx"
		if err := g.docx.Export(stem+" ("+string(mode)+")", text, docxPath); err != nil {
			g.log.Warn("failed to export docx",
				logging.String("output", docxPath),
				logging.String("error", err.Error()))
		}
	}
	return nil
}
