package anthropic

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"
)

// Response schemas sent with output_format and enforced again locally.
// The service guarantees shape when structured outputs are honored, but a
// degraded response still fails closed here instead of producing a verdict.

const newsCheckSchemaJSON = `{
	"type": "object",
	"properties": {
		"content_type": {
			"type": "string",
			"enum": ["news_article", "opinion", "listicle", "advertisement", "event_announcement", "recipe", "other"]
		},
		"reasoning": {"type": "string"}
	},
	"required": ["content_type", "reasoning"],
	"additionalProperties": false
}`

const scoredSchemaJSON = `{
	"type": "object",
	"properties": {
		"score": {"type": "number", "minimum": 0, "maximum": 1},
		"reasoning": {"type": "string"}
	},
	"required": ["score", "reasoning"],
	"additionalProperties": false
}`

var (
	newsCheckSchema = mustCompileSchema(newsCheckSchemaJSON)
	scoredSchema    = mustCompileSchema(scoredSchemaJSON)
)

type newsCheckResponse struct {
	ContentType string `json:"content_type"`
	Reasoning   string `json:"reasoning"`
}

type scoredResponse struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

func mustCompileSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic("anthropic: invalid stage schema: " + err.Error())
	}
	return schema
}

func rawSchema(raw string) json.RawMessage {
	return json.RawMessage(raw)
}
