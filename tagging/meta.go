package tagging

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// keywordTags maps (source, tag-name) -> true for the embedded keyword
// fields worth turning into asset tags.
var keywordTags = map[imagemeta.Source]map[string]bool{
	imagemeta.IPTC: {
		"Keywords": true,
	},
	imagemeta.XMP: {
		"Subject": true,
	},
}

// ExtractKeywordTags pulls IPTC/XMP keywords embedded in the original image
// bytes, lowercased and capped at MaxTagsPerImage. It is the zero-cost
// local tag source used when the tagging service budget is exhausted.
// Never returns an error: unparseable metadata yields nil.
func ExtractKeywordTags(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var tags []string

	add := func(raw string) {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" || len(tags) >= MaxTagsPerImage {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if wanted, ok := keywordTags[ti.Source]; ok {
				return wanted[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			switch v := ti.Value.(type) {
			case string:
				add(v)
			case []string:
				for _, s := range v {
					add(s)
				}
			case []any:
				for _, item := range v {
					if s, ok := item.(string); ok {
						add(s)
					}
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil
	}
	return tags
}
