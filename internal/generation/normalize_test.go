package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"no fence", `  {"a":1}  `, `{"a":1}`},
		{"leading only", "```json{\"a\":1}", `{"a":1}`},
		{"trailing only", "{\"a\":1}```", `{"a":1}`},
		{"interior untouched", "```json\n{\"code\":\"```x```\"}\n```", "{\"code\":\"```x```\"}"},
		{"empty", "", ""},
		{"fence only", "```", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := StripCodeFence(tt.in)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, StripCodeFence(once), "stripping must be idempotent")
		})
	}
}

func TestBuildSystemInstruction(t *testing.T) {
	hub, err := ParseDocument("hub.json", []byte(`{
		"$id": "Hub",
		"title": "Hub",
		"description": "An airline hub",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`))
	require.NoError(t, err)
	bare, err := ParseDocument("gate.json", []byte(`{"type":"object"}`))
	require.NoError(t, err)

	set, err := NewSchemaSet("acme", []*SchemaDocument{hub, bare})
	require.NoError(t, err)

	got := BuildSystemInstruction(set)

	assert.Contains(t, got, "Schema ID: hub.json\nTitle: Hub\nDescription: An airline hub\n")
	assert.Contains(t, got, "\"name\": {\n    \"type\": \"string\"\n  }")
	assert.Contains(t, got, "Required fields: [\n  \"name\"\n]")
	assert.Contains(t, got, "Schema ID: gate.json\nTitle: N/A\nDescription: N/A\nProperties: {}\nRequired fields: []")
	assert.Contains(t, got, `"detected_schema"`)
	assert.Contains(t, got, `"$ref"`)
	assert.Less(t, strings.Index(got, "gate.json"), strings.Index(got, "hub.json"), "schemas are listed in identifier order")
}

func TestUserInstruction(t *testing.T) {
	assert.Equal(t, "User request: a hub named Denver", UserInstruction("a hub named Denver"))
}
