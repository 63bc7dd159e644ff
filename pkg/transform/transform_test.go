package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
)

func TestNewlineToBr(t *testing.T) {
	r := NewRegistry()
	v, err := r.Apply("line1\r\nline2\nline3", []Spec{{Name: "newline_to_br"}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "line1<br>line2<br>line3", v)

	// Non-strings pass through.
	v, err = r.Apply(int64(5), []Spec{{Name: "newline_to_br"}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestFormatPrice(t *testing.T) {
	r := NewRegistry()
	d, err := coercion.ParseDecimal("199.995")
	require.NoError(t, err)

	v, err := r.Apply(d, []Spec{{Name: "format_price"}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "199.9950", v)

	// Decimal-like strings and numbers are quantized too.
	v, err = r.Apply("10.5", []Spec{{Name: "format_price"}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "10.5000", v)

	v, err = r.Apply(json.Number("10"), []Spec{{Name: "format_price"}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "10.0000", v)

	// Non-numeric passthrough values survive untouched.
	v, err = r.Apply("n/a", []Spec{{Name: "format_price"}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "n/a", v)
}

func TestJoinList(t *testing.T) {
	r := NewRegistry()
	v, err := r.Apply([]any{"a", "b", int64(3)}, []Spec{{Name: "join_list"}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "a, b, 3", v)

	v, err = r.Apply([]any{"a", "b"},
		[]Spec{{Name: "join_list", Args: map[string]any{"join_delimiter": "|"}}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "a|b", v)
}

func TestDataRegisterLabel(t *testing.T) {
	r := NewRegistry()
	attr := map[string]any{
		"options": map[string]any{
			"RED": map[string]any{"sv": "Röd", "en": "Red"},
			"BLU": map[string]any{"en": "Blue"},
		},
	}
	ctx := Context{FeedLanguage: "sv", FallbackLanguage: "en", Attribute: attr}

	v, err := r.Apply("RED", []Spec{{Name: "data_register_label"}}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "Röd", v)

	// Missing feed-language label falls back to the fallback language.
	v, err = r.Apply("BLU", []Spec{{Name: "data_register_label"}}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "Blue", v)

	// Unknown codes pass through as-is.
	v, err = r.Apply("GRN", []Spec{{Name: "data_register_label"}}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "GRN", v)

	// Multi-value registers join their labels.
	v, err = r.Apply([]any{"RED", "BLU"}, []Spec{{Name: "data_register_label"}}, ctx)
	require.NoError(t, err)
	assert.Equal(t, "Röd, Blue", v)
}

func TestApplyUnknownTransform(t *testing.T) {
	r := NewRegistry()
	_, err := r.Apply("x", []Spec{{Name: "nope"}}, Context{})
	assert.ErrorContains(t, err, "unknown transform")
}

func TestSpecUnmarshalYAML(t *testing.T) {
	var specs []Spec
	doc := `
- newline_to_br
- name: join_list
  args:
    join_delimiter: " / "
`
	require.NoError(t, yaml.Unmarshal([]byte(doc), &specs))
	require.Len(t, specs, 2)
	assert.Equal(t, "newline_to_br", specs[0].Name)
	assert.Equal(t, "join_list", specs[1].Name)
	assert.Equal(t, " / ", specs[1].Args["join_delimiter"])

	err := yaml.Unmarshal([]byte(`- args: {}`), &specs)
	assert.Error(t, err)
}
