package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	invalidJSONNote = "\n\nPrevious response was invalid JSON. Please ensure your response is valid JSON."
	validationNote  = "\n\nValidation error from previous attempt: %s\nPlease fix the JSON object to comply with the schema."
	retryNote       = "\n\nPrevious attempt failed: %s\nPlease try again."
)

const instructionPreamble = `You are a JSON object generator. You will be given a list of JSON schemas and a user prompt describing what object to create.

`

const instructionBody = `
Your task:
1. Analyze the user prompt and determine which schema it best matches
2. Generate a JSON object that complies EXACTLY with that schema
3. Include ALL required fields from the schema
4. Use appropriate values that match the user's description
5. Return ONLY the JSON object, no explanations

Requirements:
- The response must be valid JSON
- Keys inside of objects must keep the casing declared by the schema. Never change the casing of object keys.
- Include every required field of the chosen schema
- Use the data type each field declares (string, number, boolean, array, object)
- For arrays, include at least one item if the user describes multiple items
- An "items" object containing "$ref" means a list of objects of the referenced schema
- A property object containing "$ref" means a single object of the referenced schema
- Optional fields should be filled in when the user provides them
- Reasonable best-guess values are acceptable as long as they are valid for the schema

Respond with exactly one JSON object with two top-level keys:
- "detected_schema": the ID of the schema you chose
- "json_object": the generated object

Example schema:
{
  "$id": "example.json",
  "title": "Example",
  "type": "object",
  "properties": {
    "flightRoutes": {
      "description": "List of flightroute objects",
      "type": "array",
      "items": { "$ref": "flightroute.json" },
      "minItems": 1
    },
    "brandLink": { "type": "string" },
    "hub": { "description": "A single child object", "$ref": "airport.json" }
  },
  "required": ["hub"]
}

A compliant response for that schema:
{
  "detected_schema": "example",
  "json_object": {
    "flightRoutes": [ { "routeName": "value" } ],
    "brandLink": "value",
    "hub": { "airportName": "value" }
  }
}

Be sure to include both detected_schema and json_object in your response.
`

// BuildSystemInstruction describes every schema in set followed by the fixed
// generation rules. It is built once per request.
func BuildSystemInstruction(set *SchemaSet) string {
	var b strings.Builder
	b.WriteString(instructionPreamble)
	b.WriteString("Available schemas for this tenant:\n\n")

	for _, doc := range set.Documents() {
		fmt.Fprintf(&b, "Schema ID: %s\n", doc.Key())
		fmt.Fprintf(&b, "Title: %s\n", orNA(doc.Title))
		fmt.Fprintf(&b, "Description: %s\n", orNA(doc.Description))
		fmt.Fprintf(&b, "Properties: %s\n", indentJSON(doc.Properties, "{}"))
		fmt.Fprintf(&b, "Required fields: %s\n\n", indentJSON(doc.Required, "[]"))
	}

	b.WriteString(instructionBody)
	return b.String()
}

// UserInstruction is the first-attempt user message.
func UserInstruction(prompt string) string {
	return "User request: " + prompt
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func indentJSON(v interface{}, empty string) string {
	if v == nil {
		return empty
	}
	if m, ok := v.(map[string]interface{}); ok && len(m) == 0 {
		return empty
	}
	if s, ok := v.([]string); ok && len(s) == 0 {
		return empty
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return empty
	}
	return string(out)
}
