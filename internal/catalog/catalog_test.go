// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcornea-orchestrator/internal/params"
)

func TestDefaults_KeyParameters(t *testing.T) {
	d := Defaults()

	assert.True(t, params.Float(750.0).Equal(d["SLS_Concentration"]))
	assert.Equal(t, params.KindFloat, d["SLS_Concentration"].Kind())

	assert.True(t, params.Int(500).Equal(d["InjuryTime"]))
	assert.Equal(t, params.KindInt, d["InjuryTime"].Kind())

	assert.Equal(t, params.Bool(false), d["InjuryType"])
	assert.Equal(t, params.Bool(true), d["IsInjury"])
	assert.True(t, params.Int(7500).Equal(d["SimTime"]))
}

func TestDefaults_CoversWholeCatalog(t *testing.T) {
	d := Defaults()
	assert.Len(t, d, Len())
	for _, name := range Order() {
		assert.Contains(t, d, name)
	}
}

func TestOrder_IsStableAndComplete(t *testing.T) {
	order := Order()
	require.Len(t, order, Len())

	// Declaration order starts with the stem section and ends with SimTime.
	assert.Equal(t, "InitSTEM_LambdaSurface", order[0])
	assert.Equal(t, "SimTime", order[len(order)-1])

	seen := make(map[string]bool, len(order))
	for _, name := range order {
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}
}

func TestLookup(t *testing.T) {
	e, ok := Lookup("SLS_Concentration")
	require.True(t, ok)
	assert.Equal(t, GroupChemical, e.Group)

	_, ok = Lookup("NoSuchParameter")
	assert.False(t, ok)
}

func TestFilter_Select(t *testing.T) {
	f, err := NewFilter()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		want func(t *testing.T, got []Entry)
	}{
		{
			name: "empty expression matches all",
			expr: "",
			want: func(t *testing.T, got []Entry) {
				assert.Len(t, got, Len())
			},
		},
		{
			name: "by group",
			expr: "group == 'injury'",
			want: func(t *testing.T, got []Entry) {
				require.Len(t, got, 3)
				assert.Equal(t, "IsInjury", got[0].Name)
				assert.Equal(t, "InjuryType", got[1].Name)
				assert.Equal(t, "InjuryTime", got[2].Name)
			},
		},
		{
			name: "by name prefix",
			expr: "name.startsWith('SLS_')",
			want: func(t *testing.T, got []Entry) {
				assert.NotEmpty(t, got)
				for _, e := range got {
					assert.Contains(t, e.Name, "SLS_")
				}
			},
		},
		{
			name: "by kind",
			expr: "kind == 'bool' && group == 'control'",
			want: func(t *testing.T, got []Entry) {
				assert.Len(t, got, 4)
			},
		},
		{
			name: "by default value",
			expr: "kind == 'float' && default > 500.0",
			want: func(t *testing.T, got []Entry) {
				assert.NotEmpty(t, got)
				for _, e := range got {
					assert.Greater(t, e.Default.AsFloat(), 500.0)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Select(tt.expr)
			require.NoError(t, err)
			tt.want(t, got)
		})
	}
}

func TestFilter_Errors(t *testing.T) {
	f, err := NewFilter()
	require.NoError(t, err)

	_, err = f.Select("nonsense ===")
	assert.Error(t, err)

	_, err = f.Select("name")
	assert.Error(t, err, "non-boolean result must be rejected")
}

func TestFilter_CachesPrograms(t *testing.T) {
	f, err := NewFilter()
	require.NoError(t, err)

	_, err = f.Select("group == 'time'")
	require.NoError(t, err)
	assert.Len(t, f.cache, 1)

	_, err = f.Select("group == 'time'")
	require.NoError(t, err)
	assert.Len(t, f.cache, 1)
}
