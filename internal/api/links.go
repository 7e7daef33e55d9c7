package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// links maps operation paths to their RFC 8288 Link header values.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/datasets>; rel="datasets"`,
		`</api/v1/chapters>; rel="chapters"`,
		`</api/v1/story>; rel="story"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/datasets>; rel="datasets"`,
	},
	"/api/v1/datasets": {
		`</api/v1/extent>; rel="extent"`,
		`</api/v1/chapters>; rel="chapters"`,
	},
	"/api/v1/datasets/{key}": {
		`</api/v1/datasets>; rel="collection"`,
	},
	"/api/v1/datasets/{key}/info": {
		`</api/v1/datasets>; rel="collection"`,
	},
	"/api/v1/chapters": {
		`</api/v1/story>; rel="story"`,
		`</api/v1/datasets>; rel="datasets"`,
	},
	"/api/v1/story": {
		`</api/v1/chapters>; rel="chapters"`,
		`</api/v1/story/events>; rel="events"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		return v, nil
	}
}
