package seo

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/AlibekovAA/lingo-cms/backend/internal/collection/domain"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/constants"
	"github.com/AlibekovAA/lingo-cms/backend/internal/richtext"
)

const MetaField = "meta"

var ErrInvalidOptions = errors.New("invalid seo plugin options")

type GenerateFunc func(doc map[string]any) string

type Options struct {
	Collections       []string
	UploadsCollection string
	TabbedUI          bool
	GenerateTitle     GenerateFunc
	// GenerateDescription defaults to the plain text of the content field,
	// cut at a word boundary.
	GenerateDescription GenerateFunc
}

func DefaultOptions() Options {
	return Options{
		Collections:       []string{constants.PagesCollection},
		UploadsCollection: constants.MediaCollection,
		TabbedUI:          true,
		GenerateTitle: func(doc map[string]any) string {
			title, _ := doc["title"].(string)
			return fmt.Sprintf(constants.SEOTitleTemplate, title)
		},
	}
}

type Plugin struct {
	opts    Options
	targets map[string]bool
}

func New(opts Options) *Plugin {
	if opts.GenerateDescription == nil {
		opts.GenerateDescription = contentDescription
	}
	targets := make(map[string]bool, len(opts.Collections))
	for _, slug := range opts.Collections {
		targets[slug] = true
	}
	return &Plugin{opts: opts, targets: targets}
}

func (p *Plugin) Options() Options {
	return p.opts
}

func (p *Plugin) Targets(collection string) bool {
	return p.targets[collection]
}

// Apply adds the meta group to every targeted collection of registry.
func (p *Plugin) Apply(registry *domain.Registry) error {
	uploads, ok := registry.Get(p.opts.UploadsCollection)
	if !ok || !uploads.Upload {
		return fmt.Errorf("%w: uploads collection %q must exist and accept uploads", ErrInvalidOptions, p.opts.UploadsCollection)
	}

	for _, slug := range p.opts.Collections {
		c, ok := registry.Get(slug)
		if !ok {
			return fmt.Errorf("%w: unknown collection %q", ErrInvalidOptions, slug)
		}
		if _, exists := c.Field(MetaField); exists {
			continue
		}
		c.Fields = append(c.Fields, domain.Field{
			Name: MetaField,
			Type: domain.FieldGroup,
			Fields: []domain.Field{
				{Name: "title", Type: domain.FieldText},
				{Name: "description", Type: domain.FieldTextarea},
				{Name: "image", Type: domain.FieldUpload, RelationTo: p.opts.UploadsCollection},
			},
		})
		registry.Register(c)
	}
	return nil
}

func (p *Plugin) GenerateTitle(doc map[string]any) string {
	if p.opts.GenerateTitle == nil {
		return ""
	}
	return p.opts.GenerateTitle(doc)
}

func (p *Plugin) GenerateDescription(doc map[string]any) string {
	return p.opts.GenerateDescription(doc)
}

// BeforeChange fills missing meta title and description on targeted
// collections. Values the editor set explicitly are kept.
func (p *Plugin) BeforeChange(collection string, data map[string]any) {
	if !p.Targets(collection) {
		return
	}

	meta, _ := data[MetaField].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}

	if title, _ := meta["title"].(string); strings.TrimSpace(title) == "" {
		if docTitle, _ := data["title"].(string); strings.TrimSpace(docTitle) != "" {
			meta["title"] = p.GenerateTitle(data)
		}
	}
	if desc, _ := meta["description"].(string); strings.TrimSpace(desc) == "" {
		if generated := p.GenerateDescription(data); generated != "" {
			meta["description"] = generated
		}
	}

	if len(meta) > 0 {
		data[MetaField] = meta
	}
}

func contentDescription(doc map[string]any) string {
	content, ok := doc["content"]
	if !ok || content == nil {
		return ""
	}
	parsed, err := richtext.Parse(content)
	if err != nil {
		return ""
	}
	return truncate(richtext.PlainText(parsed), constants.SEODescriptionMaxLength)
}

func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)[:max]
	cut := string(runes)
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}
