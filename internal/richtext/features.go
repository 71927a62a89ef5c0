package richtext

import "sort"

type Feature string

const (
	FeatureAlign         Feature = "align"
	FeatureBlockQuote    Feature = "blockquote"
	FeatureBold          Feature = "bold"
	FeatureHeading       Feature = "heading"
	FeatureIndent        Feature = "indent"
	FeatureInlineCode    Feature = "inlineCode"
	FeatureItalic        Feature = "italic"
	FeatureLink          Feature = "link"
	FeatureOrderedList   Feature = "orderedList"
	FeatureParagraph     Feature = "paragraph"
	FeatureRelationship  Feature = "relationship"
	FeatureUnorderedList Feature = "unorderedList"
	FeatureUpload        Feature = "upload"
	FeatureChecklist     Feature = "checklist"
	FeatureHTMLConverter Feature = "htmlConverter"
)

type FeatureSet map[Feature]struct{}

func NewFeatureSet(features ...Feature) FeatureSet {
	set := make(FeatureSet, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	return set
}

// EditorFeatures is the feature list the pages editor is configured with.
func EditorFeatures() FeatureSet {
	return NewFeatureSet(
		FeatureAlign,
		FeatureBlockQuote,
		FeatureBold,
		FeatureHeading,
		FeatureIndent,
		FeatureInlineCode,
		FeatureItalic,
		FeatureLink,
		FeatureOrderedList,
		FeatureParagraph,
		FeatureRelationship,
		FeatureUnorderedList,
		FeatureUpload,
		FeatureChecklist,
		FeatureHTMLConverter,
	)
}

func (s FeatureSet) Has(f Feature) bool {
	_, ok := s[f]
	return ok
}

func (s FeatureSet) List() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}
