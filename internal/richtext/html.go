package richtext

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
)

type Upload struct {
	URL      string
	Filename string
	MimeType string
	Alt      string
}

// UploadResolver looks up an upload document referenced from the tree.
type UploadResolver interface {
	ResolveUpload(ctx context.Context, collection, id string) (Upload, bool)
}

type Converter struct {
	features FeatureSet
	uploads  UploadResolver
}

func NewConverter(features FeatureSet, uploads UploadResolver) *Converter {
	return &Converter{features: features, uploads: uploads}
}

func (c *Converter) Enabled() bool {
	return c.features.Has(FeatureHTMLConverter)
}

// ToHTML renders doc. Nodes whose feature is disabled lose their own markup
// but their children are still rendered.
func (c *Converter) ToHTML(ctx context.Context, doc Document) string {
	var b strings.Builder
	c.writeChildren(ctx, &b, doc.Root.Children)
	return b.String()
}

func (c *Converter) writeChildren(ctx context.Context, b *strings.Builder, nodes []Node) {
	for _, n := range nodes {
		c.writeNode(ctx, b, n)
	}
}

func (c *Converter) writeNode(ctx context.Context, b *strings.Builder, n Node) {
	switch n.Type {
	case "text":
		c.writeText(b, n)
	case "linebreak":
		b.WriteString("<br>")
	case "tab":
		b.WriteString("\t")
	case "paragraph":
		c.writeElement(ctx, b, n, FeatureParagraph, "p", "")
	case "heading":
		tag := n.Tag
		if len(tag) != 2 || tag[0] != 'h' || tag[1] < '1' || tag[1] > '6' {
			tag = "h1"
		}
		c.writeElement(ctx, b, n, FeatureHeading, tag, "")
	case "quote":
		c.writeElement(ctx, b, n, FeatureBlockQuote, "blockquote", "")
	case "list":
		switch n.ListType {
		case "number":
			c.writeElement(ctx, b, n, FeatureOrderedList, "ol", "")
		case "check":
			c.writeElement(ctx, b, n, FeatureChecklist, "ul", ` class="list-check"`)
		default:
			c.writeElement(ctx, b, n, FeatureUnorderedList, "ul", "")
		}
	case "listitem":
		attrs := ""
		if n.Checked != nil && c.features.Has(FeatureChecklist) {
			attrs = fmt.Sprintf(` role="checkbox" aria-checked="%t"`, *n.Checked)
		}
		b.WriteString("<li" + attrs + ">")
		c.writeChildren(ctx, b, n.Children)
		b.WriteString("</li>")
	case "link", "autolink":
		c.writeLink(ctx, b, n)
	case "upload":
		c.writeUpload(ctx, b, n)
	case "relationship":
		if !c.features.Has(FeatureRelationship) {
			return
		}
		fmt.Fprintf(b, `<span data-relation-to="%s" data-id="%s"></span>`,
			html.EscapeString(n.RelationTo), html.EscapeString(n.valueID()))
	default:
		c.writeChildren(ctx, b, n.Children)
	}
}

func (c *Converter) writeElement(ctx context.Context, b *strings.Builder, n Node, feature Feature, tag, attrs string) {
	if !c.features.Has(feature) {
		c.writeChildren(ctx, b, n.Children)
		return
	}

	var styles []string
	if align := n.alignment(); align != "" && c.features.Has(FeatureAlign) {
		styles = append(styles, "text-align: "+align+";")
	}
	if n.Indent > 0 && c.features.Has(FeatureIndent) {
		styles = append(styles, fmt.Sprintf("padding-inline-start: %dpx;", n.Indent*40))
	}
	if len(styles) > 0 {
		attrs += ` style="` + strings.Join(styles, " ") + `"`
	}

	b.WriteString("<" + tag + attrs + ">")
	c.writeChildren(ctx, b, n.Children)
	b.WriteString("</" + tag + ">")
}

func (c *Converter) writeText(b *strings.Builder, n Node) {
	text := html.EscapeString(n.Text)
	format := n.textFormat()

	if format&formatCode != 0 && c.features.Has(FeatureInlineCode) {
		text = "<code>" + text + "</code>"
	}
	if format&formatItalic != 0 && c.features.Has(FeatureItalic) {
		text = "<em>" + text + "</em>"
	}
	if format&formatBold != 0 && c.features.Has(FeatureBold) {
		text = "<strong>" + text + "</strong>"
	}
	b.WriteString(text)
}

func (c *Converter) writeLink(ctx context.Context, b *strings.Builder, n Node) {
	href, newTab := n.linkURL()
	if !c.features.Has(FeatureLink) || !safeHref(href) {
		c.writeChildren(ctx, b, n.Children)
		return
	}

	attrs := ` href="` + html.EscapeString(href) + `"`
	if newTab {
		attrs += ` target="_blank" rel="noopener noreferrer"`
	}
	b.WriteString("<a" + attrs + ">")
	c.writeChildren(ctx, b, n.Children)
	b.WriteString("</a>")
}

func (c *Converter) writeUpload(ctx context.Context, b *strings.Builder, n Node) {
	if !c.features.Has(FeatureUpload) || c.uploads == nil {
		return
	}
	up, ok := c.uploads.ResolveUpload(ctx, n.RelationTo, n.valueID())
	if !ok {
		return
	}

	src := html.EscapeString(up.URL)
	if strings.HasPrefix(up.MimeType, "image/") {
		fmt.Fprintf(b, `<img src="%s" alt="%s">`, src, html.EscapeString(up.Alt))
		return
	}
	fmt.Fprintf(b, `<a href="%s" rel="noopener noreferrer">%s</a>`, src, html.EscapeString(up.Filename))
}

func safeHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" {
		return false
	}
	if (strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//")) || strings.HasPrefix(href, "#") {
		return true
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto", "tel":
		return true
	}
	return false
}

// PlainText concatenates the text content of doc, separating blocks with a
// single space.
func PlainText(doc Document) string {
	var parts []string
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			switch n.Type {
			case "text":
				parts = append(parts, n.Text)
			case "linebreak":
				parts = append(parts, " ")
			default:
				walk(n.Children)
				if len(n.Children) > 0 {
					parts = append(parts, " ")
				}
			}
		}
	}
	walk(doc.Root.Children)
	return strings.Join(strings.Fields(strings.Join(parts, "")), " ")
}
