package document

// #region imports
import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/idea-forge/internal/scoring"
)

// #endregion

// #region errors

var (
	// ErrMissingFrontMatter means the content does not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("document: missing frontmatter")
	// ErrMalformedFrontMatter means the YAML block is unterminated or invalid.
	ErrMalformedFrontMatter = errors.New("document: malformed frontmatter")
)

// #endregion

// #region render

// Render writes the frontmatter between --- fences followed by the body.
func Render(doc IdeaDocument) ([]byte, error) {
	data, err := yaml.Marshal(doc.Frontmatter)
	if err != nil {
		return nil, fmt.Errorf("document: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.WriteString(Body(doc))
	return buf.Bytes(), nil
}

// Body renders the markdown body, which repeats the frontmatter in prose.
func Body(doc IdeaDocument) string {
	var b strings.Builder
	fm := doc.Frontmatter

	fmt.Fprintf(&b, "# %s\n\n", fm.Title)

	b.WriteString("## Elevator Pitch\n\n")
	fmt.Fprintf(&b, "%s\n\n", fm.ElevatorPitch)

	b.WriteString("## Pitch\n\n")
	d := doc.Winner.Draft
	for _, f := range []struct{ label, value string }{
		{"Concept", d.Concept},
		{"Conflict", d.Conflict},
		{"Twist", d.Twist},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			fmt.Fprintf(&b, "**%s:** %s\n\n", f.label, v)
		}
	}

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "%s\n\n", fm.Summary)

	b.WriteString("## Genre & Themes\n\n")
	if doc.Category != "" {
		fmt.Fprintf(&b, "- **Genre:** %s (%s)\n", fm.Genre, doc.Category)
	} else {
		fmt.Fprintf(&b, "- **Genre:** %s\n", fm.Genre)
	}
	fmt.Fprintf(&b, "- **Tone:** %s\n", fm.Tone)
	fmt.Fprintf(&b, "- **Themes:** %s\n\n", strings.Join(fm.Themes, ", "))

	b.WriteString("## Scores\n\n")
	b.WriteString("| Criterion | Score |\n|---|---|\n")
	for _, c := range scoring.Criteria {
		fmt.Fprintf(&b, "| %s | %.1f |\n", c, doc.Score.Get(c))
	}
	fmt.Fprintf(&b, "| composite | %.2f |\n\n", doc.Score.Composite())
	if doc.ForcedAccept {
		b.WriteString("Accepted after the revision budget ran out.\n\n")
	}
	if r := strings.TrimSpace(doc.Score.Rationale); r != "" {
		fmt.Fprintf(&b, "> %s\n\n", r)
	}

	if len(doc.Lineage) > 1 {
		b.WriteString("## Revision History\n\n")
		for _, p := range doc.Lineage {
			fmt.Fprintf(&b, "- Revision %d: %s\n", p.RevisionNumber, ExtractTitle(p.Text))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Trope Analysis\n\n")
	if len(fm.Tropes) == 0 {
		b.WriteString("No tropes detected.\n\n")
	} else {
		b.WriteString("### Detected Tropes\n\n")
		for _, t := range fm.Tropes {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n")
		if len(fm.TropeSuggestions) > 0 {
			b.WriteString("### Suggestions\n\n")
			for _, s := range fm.TropeSuggestions {
				fmt.Fprintf(&b, "- **%s:** %s\n", s.Trope, s.Suggestion)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Notes\n\n")
	for _, n := range doc.NoteLines {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return b.String()
}

// #endregion

// #region parse

// Parse splits a rendered document into frontmatter and body.
func Parse(content []byte) (Frontmatter, []byte, error) {
	if len(content) == 0 {
		return Frontmatter{}, nil, ErrMissingFrontMatter
	}
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Frontmatter{}, nil, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Frontmatter{}, nil, ErrMalformedFrontMatter
	}
	var fm Frontmatter
	if err := yaml.Unmarshal(parts[0], &fm); err != nil {
		return Frontmatter{}, nil, fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	if fm.DocType != DocType {
		return Frontmatter{}, nil, fmt.Errorf("%w: doc_type %q", ErrMalformedFrontMatter, fm.DocType)
	}
	return fm, bytes.TrimLeft(parts[1], "\n"), nil
}

// #endregion
