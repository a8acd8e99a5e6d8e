package contact

import "strings"

// vectorImageWrappers are the keys under which a picture-like object may
// nest the actual vector image across API revisions.
var vectorImageWrappers = []string{
	"displayImageReference",
	"vectorImage",
	"com.linkedin.common.VectorImage",
	"displayImage",
	"picture",
}

// PictureURL resolves a concrete absolute image URL from a picture-like
// sub-object. It accepts a vector image ("root URL + smallest artifact
// path"), a bare string URL, or a wrapper nesting either; anything else
// yields the empty string. Never panics.
func PictureURL(v any) string {
	return pictureURL(v, 0)
}

// pictureURL limits wrapper recursion; real payloads nest at most two
// levels (picture -> displayImageReference -> vectorImage).
func pictureURL(v any, depth int) string {
	if depth > 3 {
		return ""
	}

	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "http://") || strings.HasPrefix(val, "https://") {
			return val
		}
		return ""
	case map[string]any:
		if url := vectorImageURL(val); url != "" {
			return url
		}
		if url, ok := val["url"].(string); ok {
			return pictureURL(url, depth+1)
		}
		for _, key := range vectorImageWrappers {
			if nested, ok := val[key]; ok {
				if url := pictureURL(nested, depth+1); url != "" {
					return url
				}
			}
		}
	}
	return ""
}

// vectorImageURL joins rootUrl with the smallest artifact path segment.
func vectorImageURL(m map[string]any) string {
	rootURL, _ := m["rootUrl"].(string)
	artifacts, _ := m["artifacts"].([]any)
	if rootURL == "" || len(artifacts) == 0 {
		return ""
	}

	bestPath := ""
	bestWidth := -1.0
	for _, a := range artifacts {
		artifact, ok := a.(map[string]any)
		if !ok {
			continue
		}
		path, _ := artifact["fileIdentifyingUrlPathSegment"].(string)
		if path == "" {
			continue
		}
		width, _ := artifact["width"].(float64)
		if bestWidth < 0 || width < bestWidth {
			bestWidth = width
			bestPath = path
		}
	}
	if bestPath == "" {
		return ""
	}
	return rootURL + bestPath
}
