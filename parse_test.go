package drawsheet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeJSONResponse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"clean", `{"components":[]}`, `{"components":[]}`},
		{"fenced", "```json\n{\"components\":[]}\n```", `{"components":[]}`},
		{"bare fence", "```\n{\"components\":[]}\n```", `{"components":[]}`},
		{"leading prose", `Sure! Here is the data: {"components":[]}`, `{"components":[]}`},
		{"trailing prose", `{"components":[]} Hope that helps!`, `{"components":[]}`},
		{"whitespace", "  \n{\"components\":[]}\n  ", `{"components":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(SanitizeJSONResponse([]byte(tc.in))))
		})
	}
}

func TestParseRound(t *testing.T) {
	schema := exchangerSchema()

	t.Run("resolves fields and reports the rest", func(t *testing.T) {
		raw := `{"equipment_number":"E-1021","components":[
			{"component_name":"Shell","fluid":"Steam","material_spec":""},
			{"component_name":"Tube Bundle","fluid":"Cooling Water","material_grade":"70"}]}`

		state, missing, err := parseRound([]byte(raw), schema, nil)
		require.NoError(t, err)
		assert.Equal(t, "Steam", state["Shell"][FieldFluid])
		assert.Equal(t, "70", state["Tube Bundle"][FieldMaterialGrade])
		assert.Equal(t, MissingReport{"Shell": {FieldMaterialSpec}}, missing)
	})

	t.Run("malformed text is recoverable", func(t *testing.T) {
		state, missing, err := parseRound([]byte("Sure! Here is the data: {not valid}"), schema, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedResponse))
		assert.Empty(t, state)
		// Everything requested stays missing, feeding the retry loop.
		assert.Equal(t, schema.fullMissing(), missing)
	})

	t.Run("missing components key is malformed", func(t *testing.T) {
		_, _, err := parseRound([]byte(`{"equipment_number":"E-1021"}`), schema, nil)
		assert.True(t, errors.Is(err, ErrMalformedResponse))
	})

	t.Run("resolved fields carry forward", func(t *testing.T) {
		prior := map[string]map[string]string{"Shell": {FieldFluid: "Steam"}}
		// Retry round omits fluid entirely and even contradicts nothing.
		raw := `{"components":[{"component_name":"Shell","material_spec":"SA-516"}]}`

		state, missing, err := parseRound([]byte(raw), schema, prior)
		require.NoError(t, err)
		assert.Equal(t, "Steam", state["Shell"][FieldFluid])
		assert.Equal(t, "SA-516", state["Shell"][FieldMaterialSpec])
		assert.NotContains(t, missing, "Shell")
	})

	t.Run("accepted value never overwritten", func(t *testing.T) {
		prior := map[string]map[string]string{"Shell": {FieldFluid: "Steam"}}
		raw := `{"components":[{"component_name":"Shell","fluid":"Oil"}]}`

		state, _, err := parseRound([]byte(raw), schema, prior)
		require.NoError(t, err)
		assert.Equal(t, "Steam", state["Shell"][FieldFluid])
	})

	t.Run("none and null literals are empty", func(t *testing.T) {
		raw := `{"components":[{"component_name":"Shell","fluid":"None","material_spec":"  null "}]}`

		state, missing, err := parseRound([]byte(raw), schema, nil)
		require.NoError(t, err)
		assert.Empty(t, state["Shell"])
		assert.Equal(t, []string{FieldFluid, FieldMaterialSpec}, missing["Shell"])
	})

	t.Run("whitespace trimmed", func(t *testing.T) {
		raw := `{"components":[{"component_name":"Shell","fluid":"  Steam  "}]}`
		state, _, err := parseRound([]byte(raw), schema, nil)
		require.NoError(t, err)
		assert.Equal(t, "Steam", state["Shell"][FieldFluid])
	})

	t.Run("numbers kept as opaque text", func(t *testing.T) {
		raw := `{"components":[{"component_name":"Shell","material_spec":350.5}]}`
		state, _, err := parseRound([]byte(raw), schema, nil)
		require.NoError(t, err)
		assert.Equal(t, "350.5", state["Shell"][FieldMaterialSpec])
	})

	t.Run("invented components ignored", func(t *testing.T) {
		raw := `{"components":[
			{"component_name":"Imaginary Drum","fluid":"Steam"},
			{"component_name":"Shell","fluid":"Steam"}]}`

		state, _, err := parseRound([]byte(raw), schema, nil)
		require.NoError(t, err)
		assert.NotContains(t, state, "Imaginary Drum")
		assert.Equal(t, "Steam", state["Shell"][FieldFluid])
	})

	t.Run("component absent from answer stays fully missing", func(t *testing.T) {
		raw := `{"components":[{"component_name":"Shell","fluid":"Steam","material_spec":"SA-516"}]}`
		_, missing, err := parseRound([]byte(raw), schema, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{FieldFluid, FieldMaterialGrade}, missing["Tube Bundle"])
	})

	t.Run("document nested under equipment key", func(t *testing.T) {
		raw := `{"equipment":{"components":[{"component_name":"Shell","fluid":"Steam"}]}}`
		state, _, err := parseRound([]byte(raw), schema, nil)
		require.NoError(t, err)
		assert.Equal(t, "Steam", state["Shell"][FieldFluid])
	})

	t.Run("fenced response accepted", func(t *testing.T) {
		raw := "```json\n{\"components\":[{\"component_name\":\"Shell\",\"fluid\":\"Steam\"}]}\n```"
		state, _, err := parseRound([]byte(raw), schema, nil)
		require.NoError(t, err)
		assert.Equal(t, "Steam", state["Shell"][FieldFluid])
	})
}

func TestAssembleComponents(t *testing.T) {
	schema := exchangerSchema()
	state := map[string]map[string]string{"Shell": {FieldFluid: "Steam"}}

	comps := assembleComponents(schema, state)
	require.Len(t, comps, 2)
	assert.Equal(t, "Shell", comps[0].Name)
	assert.Equal(t, "Steam", comps[0].Field(FieldFluid))
	assert.Equal(t, "", comps[0].Field(FieldMaterialSpec))
	// Unresolved components are present with every field empty.
	assert.Equal(t, "Tube Bundle", comps[1].Name)
	assert.Equal(t, "", comps[1].Field(FieldFluid))
	assert.Equal(t, "", comps[1].Field(FieldMaterialGrade))
}
