package classifier

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
)

const schemaName = "sentiment_classification"

const systemInstruction = `You classify consumer feedback about a brand (complaints and star ratings).
Respond with a single JSON object and nothing else, matching the provided schema exactly:
- language: ISO 639-1 code of the feedback text.
- label: one of VERY_NEGATIVE, NEGATIVE, NEUTRAL, POSITIVE, VERY_POSITIVE.
- score: number from -1 (most negative) to 1 (most positive).
- intensity: number from 0 (flat) to 1 (very emotional).
- urgency: integer from 0 to 100 for how urgently the brand should respond.
- topics: up to 5 short lowercase nouns (e.g. "refund", "delivery", "billing").
- keyPhrases: up to 5 short phrases quoted or paraphrased from the text.
- summary: one neutral sentence.`

var (
	schemaOnce sync.Once
	schemaJSON json.RawMessage
	schemaMap  map[string]interface{}
)

// Schema returns the JSON Schema of Result, with additionalProperties disabled
// and every property required at every object level.
func Schema() json.RawMessage {
	schemaOnce.Do(buildSchema)
	return schemaJSON
}

// SchemaMap returns Schema decoded into a generic map.
func SchemaMap() map[string]interface{} {
	schemaOnce.Do(buildSchema)
	return schemaMap
}

func buildSchema() {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(&Result{})

	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	enforceStrict(m)

	out, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	schemaMap = m
	schemaJSON = out
}

func enforceStrict(schema map[string]interface{}) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]interface{}); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			sort.Strings(required)
			schema["required"] = required
		}
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				enforceStrict(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		enforceStrict(items)
	}
}
