package services

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	streamchat "github.com/MegaGrindStone/streamchat"
	"github.com/MegaGrindStone/streamchat/internal/models"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
)

// HTMLExporter renders archived interactions as a standalone HTML page. Successful bot responses are
// treated as markdown; raw HTML inside them is not passed through.
type HTMLExporter struct {
	md     goldmark.Markdown
	tmpl   *template.Template
	labels models.Labels
}

type exportPage struct {
	Title        string
	Labels       models.Labels
	Interactions []exportInteraction
}

type exportInteraction struct {
	models.Interaction
	Rendered template.HTML
}

// NewHTMLExporter parses the embedded transcript template.
func NewHTMLExporter(labels models.Labels) (HTMLExporter, error) {
	tmpl, err := template.ParseFS(streamchat.TemplateFS, "templates/transcript.html")
	if err != nil {
		return HTMLExporter{}, fmt.Errorf("failed to parse transcript template: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(highlighting.WithStyle("monokai")),
		),
	)

	return HTMLExporter{
		md:     md,
		tmpl:   tmpl,
		labels: labels,
	}, nil
}

// Export writes the page for interactions to w.
func (e HTMLExporter) Export(w io.Writer, title string, interactions []models.Interaction) error {
	page := exportPage{
		Title:        title,
		Labels:       e.labels,
		Interactions: make([]exportInteraction, len(interactions)),
	}

	for i, interaction := range interactions {
		page.Interactions[i].Interaction = interaction
		if interaction.Failed {
			continue
		}

		var buf bytes.Buffer
		if err := e.md.Convert([]byte(interaction.Response), &buf); err != nil {
			return fmt.Errorf("failed to render interaction %s: %w", interaction.ID, err)
		}
		// goldmark escapes raw HTML unless WithUnsafe is set, so the output is safe to embed.
		page.Interactions[i].Rendered = template.HTML(buf.String())
	}

	if err := e.tmpl.ExecuteTemplate(w, "transcript.html", page); err != nil {
		return fmt.Errorf("failed to execute transcript template: %w", err)
	}
	return nil
}
