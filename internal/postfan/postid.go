package postfan

import (
	"encoding/json"
	"strconv"
	"strings"
)

// PostIDPaths is the ordered list of response fields checked for a post
// identifier. The backend is inconsistent about where it puts it.
var PostIDPaths = []string{
	"post._id",
	"post.id",
	"post.postId",
	"postId",
	"_id",
	"id",
	"data.postId",
	"data._id",
	"data.id",
	"result.postId",
	"result._id",
	"result.id",
	"publishId",
}

// ExtractPostID returns the first non-empty identifier found in a JSON body
// following PostIDPaths, or "" when none is present.
func ExtractPostID(body []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	return ExtractPostIDFrom(doc)
}

// ExtractPostIDFrom is ExtractPostID for an already decoded document.
func ExtractPostIDFrom(doc map[string]any) string {
	for _, path := range PostIDPaths {
		if id := lookupString(doc, strings.Split(path, ".")); id != "" {
			return id
		}
	}
	return ""
}

func lookupString(doc map[string]any, path []string) string {
	var cur any = doc
	for _, part := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok {
			return ""
		}
	}
	switch v := cur.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
