package route

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyroute/polyroute/internal/util"
)

func TestRouteDefinition_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		def     RouteDefinition
		wantErr string
	}{
		{
			name: "valid static route",
			def: RouteDefinition{
				ID:     "r1",
				Method: "GET",
				Segments: []Segment{
					{Kind: KindStatic, Name: "users"},
				},
			},
		},
		{
			name: "valid variable route",
			def: RouteDefinition{
				ID:     "r2",
				Method: "POST",
				Segments: []Segment{
					{Kind: KindStatic, Name: "users"},
					{Kind: KindVariable, Name: "id", VariableType: VariableNumber},
				},
			},
		},
		{
			name: "variable type defaults to any",
			def: RouteDefinition{
				ID:     "r3",
				Method: "GET",
				Segments: []Segment{
					{Kind: KindVariable, Name: "rest"},
				},
			},
		},
		{
			name: "empty id",
			def: RouteDefinition{
				Method: "GET",
			},
			wantErr: "id",
		},
		{
			name: "empty method",
			def: RouteDefinition{
				ID: "r4",
			},
			wantErr: "method",
		},
		{
			name: "empty segment name",
			def: RouteDefinition{
				ID:     "r5",
				Method: "GET",
				Segments: []Segment{
					{Kind: KindStatic, Name: ""},
				},
			},
			wantErr: "segments[0]",
		},
		{
			name: "unknown segment kind",
			def: RouteDefinition{
				ID:     "r6",
				Method: "GET",
				Segments: []Segment{
					{Kind: "glob", Name: "users"},
				},
			},
			wantErr: "invalid segment kind",
		},
		{
			name: "unknown variable type",
			def: RouteDefinition{
				ID:     "r7",
				Method: "GET",
				Segments: []Segment{
					{Kind: KindVariable, Name: "id", VariableType: "integer"},
				},
			},
			wantErr: "invalid variable type",
		},
		{
			name: "bad segment reported with index",
			def: RouteDefinition{
				ID:     "r8",
				Method: "GET",
				Segments: []Segment{
					{Kind: KindStatic, Name: "users"},
					{Kind: "glob", Name: "x"},
				},
			},
			wantErr: "segments[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.def.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, util.ErrInvalidRoute)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRouteDefinition_HasStage(t *testing.T) {
	t.Parallel()

	def := RouteDefinition{
		ID:           "r1",
		Method:       "GET",
		ActiveStages: []string{"dev", "prod"},
	}

	assert.True(t, def.HasStage("dev"))
	assert.True(t, def.HasStage("prod"))
	assert.False(t, def.HasStage("staging"))
	assert.False(t, def.HasStage(""))
}

func TestRouteDefinition_AddStage(t *testing.T) {
	t.Parallel()

	def := RouteDefinition{ID: "r1", Method: "GET"}

	assert.True(t, def.AddStage("dev"))
	assert.Equal(t, []string{"dev"}, def.ActiveStages)

	// Adding the same stage again is a no-op
	assert.False(t, def.AddStage("dev"))
	assert.Equal(t, []string{"dev"}, def.ActiveStages)

	assert.True(t, def.AddStage("prod"))
	assert.Equal(t, []string{"dev", "prod"}, def.ActiveStages)
}

func TestRouteDefinition_RemoveStage(t *testing.T) {
	t.Parallel()

	def := RouteDefinition{
		ID:           "r1",
		Method:       "GET",
		ActiveStages: []string{"dev", "staging", "prod"},
	}

	assert.True(t, def.RemoveStage("staging"))
	assert.Equal(t, []string{"dev", "prod"}, def.ActiveStages)

	assert.False(t, def.RemoveStage("staging"))
	assert.Equal(t, []string{"dev", "prod"}, def.ActiveStages)

	assert.True(t, def.RemoveStage("dev"))
	assert.True(t, def.RemoveStage("prod"))
	assert.Empty(t, def.ActiveStages)
}

func TestRouteDefinition_WireFormat(t *testing.T) {
	t.Parallel()

	raw := `{
		"id": "users-get",
		"method": "GET",
		"require_api_key": true,
		"segments": [
			{"type": "static", "name": "users"},
			{"type": "variable", "name": "id", "variable_type": "number"},
			{"type": "variable", "name": "rest"}
		],
		"node_setup_version_id": "v42",
		"tenant_id": "tenant-1",
		"active_stages": ["dev", "prod"]
	}`

	var def RouteDefinition
	require.NoError(t, json.Unmarshal([]byte(raw), &def))

	assert.Equal(t, "users-get", def.ID)
	assert.Equal(t, "GET", def.Method)
	assert.True(t, def.RequireAPIKey)
	assert.Equal(t, "v42", def.NodeSetupVersionID)
	assert.Equal(t, "tenant-1", def.TenantID)
	assert.Equal(t, []string{"dev", "prod"}, def.ActiveStages)

	require.Len(t, def.Segments, 3)
	assert.Equal(t, KindStatic, def.Segments[0].Kind)
	assert.Equal(t, "users", def.Segments[0].Name)
	assert.Equal(t, VariableNumber, def.Segments[1].VariableType)

	// variable_type absent on the wire means any
	assert.Empty(t, def.Segments[2].VariableType)
	assert.Equal(t, variableClasses[VariableAny], def.Segments[2].class())
}
