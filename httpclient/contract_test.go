package httpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultContract_Resolve(t *testing.T) {
	t.Parallel()

	target := NewTarget("users", "http://api.test")

	tests := []struct {
		name    string
		spec    MethodSpec
		wantErr bool
		check   func(t *testing.T, md *MethodMetadata)
	}{
		{
			name: "given a valid spec, then parses the template and indexes params",
			spec: MethodSpec{
				Name:    "Update",
				Line:    "PUT /users/{id}?notify={notify}",
				Headers: []string{"Accept: application/json", "X-Tenant: {tenant}"},
				Params: []Param{
					Var("id"),
					Var("notify"),
					Var("tenant"),
					BodyParam(),
					QueryMapParam(),
					HeaderMapParam(),
				},
				Returns: ShapeOf[string](),
			},
			check: func(t *testing.T, md *MethodMetadata) {
				assert.Equal(t, "users#Update", md.ConfigKey)
				assert.Equal(t, MethodPut, md.Template.Method())
				assert.Equal(t, "/users/{id}", md.Template.URI())
				assert.Equal(t, []string{"{notify}"}, md.Template.QueryValues("notify"))
				assert.Equal(t, []string{"application/json"}, md.Template.HeaderValues("Accept"))
				assert.Equal(t, []string{"{tenant}"}, md.Template.HeaderValues("X-Tenant"))
				assert.Equal(t, 3, md.BodyIndex)
				assert.Equal(t, 4, md.QueryMapIndex)
				assert.Equal(t, 5, md.HeaderMapIndex)
				assert.True(t, md.Returns.Is(stringType))
			},
		},
		{
			name: "given no params, then indexes are -1 and returns is void",
			spec: MethodSpec{Name: "Ping", Line: "GET /ping"},
			check: func(t *testing.T, md *MethodMetadata) {
				assert.Equal(t, -1, md.BodyIndex)
				assert.Equal(t, -1, md.QueryMapIndex)
				assert.Equal(t, -1, md.HeaderMapIndex)
				assert.True(t, md.Returns.IsVoid())
			},
		},
		{
			name:    "given no name, then fails",
			spec:    MethodSpec{Line: "GET /ping"},
			wantErr: true,
		},
		{
			name:    "given a request line without uri, then fails",
			spec:    MethodSpec{Name: "Bad", Line: "GET"},
			wantErr: true,
		},
		{
			name:    "given an unknown method, then fails",
			spec:    MethodSpec{Name: "Bad", Line: "FETCH /x"},
			wantErr: true,
		},
		{
			name:    "given a header without colon, then fails",
			spec:    MethodSpec{Name: "Bad", Line: "GET /x", Headers: []string{"Accept"}},
			wantErr: true,
		},
		{
			name:    "given two bodies, then fails",
			spec:    MethodSpec{Name: "Bad", Line: "POST /x", Params: []Param{BodyParam(), BodyParam()}},
			wantErr: true,
		},
		{
			name:    "given a body on GET, then fails",
			spec:    MethodSpec{Name: "Bad", Line: "GET /x", Params: []Param{BodyParam()}},
			wantErr: true,
		},
		{
			name:    "given two query maps, then fails",
			spec:    MethodSpec{Name: "Bad", Line: "GET /x", Params: []Param{QueryMapParam(), QueryMapParam()}},
			wantErr: true,
		},
		{
			name:    "given two header maps, then fails",
			spec:    MethodSpec{Name: "Bad", Line: "GET /x", Params: []Param{HeaderMapParam(), HeaderMapParam()}},
			wantErr: true,
		},
		{
			name:    "given a duplicated variable, then fails",
			spec:    MethodSpec{Name: "Bad", Line: "GET /x/{id}", Params: []Param{Var("id"), Var("id")}},
			wantErr: true,
		},
		{
			name:    "given an unnamed variable, then fails",
			spec:    MethodSpec{Name: "Bad", Line: "GET /x", Params: []Param{{Kind: ParamVariable}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			md, err := DefaultContract{}.Resolve(target, tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			tt.check(t, md)
		})
	}
}
