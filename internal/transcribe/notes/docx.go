package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

var (
	reHeading  = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	reBold     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBullet   = regexp.MustCompile(`^[\-\*]\s+(.+)$`)
	reCheckbox = regexp.MustCompile(`^[\-\*]\s+\[( |x|X)\]\s+(.+)$`)
)

// DocxExporter renders markdown notes as a Word document.
type DocxExporter struct {
	Font     string
	FontSize uint64
}

// NewDocxExporter returns an exporter with the default font.
func NewDocxExporter() *DocxExporter {
	return &DocxExporter{Font: "Calibri", FontSize: 11}
}

// Export writes markdown as a .docx file at path, titled title.
func (e *DocxExporter) Export(title, markdown, path string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}

	e.styledRun(doc.AddParagraph(""), title, true, e.FontSize+5)

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "---" {
			continue
		}

		if m := reHeading.FindStringSubmatch(trimmed); m != nil {
			e.styledRun(doc.AddParagraph(""), m[2], true, e.headingSize(len(m[1])))
			continue
		}
		if m := reCheckbox.FindStringSubmatch(trimmed); m != nil {
			box := "☐ "
			if m[1] != " " {
				box = "☑ "
			}
			e.richText(doc.AddParagraph(""), box+m[2])
			continue
		}
		if m := reBullet.FindStringSubmatch(trimmed); m != nil {
			e.richText(doc.AddParagraph(""), "• "+m[1])
			continue
		}

		e.richText(doc.AddParagraph(""), trimmed)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create docx dir: %w", err)
	}
	return doc.SaveTo(path)
}

func (e *DocxExporter) headingSize(level int) uint64 {
	switch level {
	case 1:
		return e.FontSize + 4
	case 2:
		return e.FontSize + 3
	case 3:
		return e.FontSize + 2
	default:
		return e.FontSize
	}
}

func (e *DocxExporter) styledRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(cleanInline(text)).Font(e.Font).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}

// richText splits on **bold** spans.
func (e *DocxExporter) richText(p *docx.Paragraph, text string) {
	parts := reBold.Split(text, -1)
	matches := reBold.FindAllStringSubmatch(text, -1)

	for i, part := range parts {
		if part != "" {
			p.AddText(cleanInline(part)).Font(e.Font).Size(e.FontSize).Color("000000")
		}
		if i < len(matches) {
			p.AddText(cleanInline(matches[i][1])).Font(e.Font).Size(e.FontSize).Color("000000").Bold(true)
		}
	}
}

func cleanInline(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.ReplaceAll(s, "`", "")
}
