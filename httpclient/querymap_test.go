package httpclient

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldBase struct {
	Region string `param:"region"`
}

type fieldFilter struct {
	fieldBase

	Name   string `param:"name"`
	Limit  *int   `param:"limit"`
	Secret string `param:"-"`
	Plain  int
	Tags   []string `param:"tags,omitempty"`
}

type fieldWithPointer struct {
	*fieldBase

	Query string `param:"q"`
}

type fieldDuplicate struct {
	A string `param:"x"`
	B string `param:"x"`
}

func TestFieldQueryMapEncoder(t *testing.T) {
	t.Parallel()

	limit := 5

	tests := []struct {
		name    string
		input   any
		want    map[string]any
		wantErr bool
	}{
		{
			name: "given a struct, then maps tagged and promoted fields",
			input: fieldFilter{
				fieldBase: fieldBase{Region: "eu"},
				Name:      "a",
				Secret:    "s",
				Plain:     3,
			},
			want: map[string]any{"region": "eu", "name": "a", "Plain": 3},
		},
		{
			name:  "given a pointer with present optional fields, then includes them",
			input: &fieldFilter{Limit: &limit, Tags: []string{"x"}},
			want: map[string]any{
				"region": "",
				"name":   "",
				"limit":  &limit,
				"Plain":  0,
				"tags":   []string{"x"},
			},
		},
		{
			name:  "given a nil embedded pointer, then skips its fields",
			input: fieldWithPointer{Query: "go"},
			want:  map[string]any{"q": "go"},
		},
		{
			name:  "given nil, then returns an empty map",
			input: nil,
			want:  map[string]any{},
		},
		{
			name:  "given a nil pointer, then returns an empty map",
			input: (*fieldFilter)(nil),
			want:  map[string]any{},
		},
		{
			name:    "given a non struct, then fails",
			input:   42,
			wantErr: true,
		},
		{
			name:    "given duplicate names, then fails",
			input:   fieldDuplicate{},
			wantErr: true,
		},
	}

	encoder := NewFieldQueryMapEncoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := encoder.Encode(tt.input)
			if tt.wantErr {
				var encErr *EncodeError
				assert.ErrorAs(t, err, &encErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type accessorPage struct {
	number int
	size   int
	tags   []string
}

func (p accessorPage) GetNumber() int { return p.number }

func (p accessorPage) Size() int { return p.size }

func (p accessorPage) Tags() []string { return p.tags }

func (p accessorPage) With(n int) accessorPage { return accessorPage{number: n} }

func (p accessorPage) String() string { return "page" }

func (p accessorPage) ParamAliases() map[string]string {
	return map[string]string{"Size": "pageSize"}
}

type selfRef struct{ n int }

func (s selfRef) Me() selfRef { return s }

func (s selfRef) Ptr() *selfRef { return &s }

func (s selfRef) N() int { return s.n }

// selfHolder is comparable by type but its field may hold a slice.
type selfHolder struct{ V any }

func (h selfHolder) Self() selfHolder { return h }

func (h selfHolder) Value() any { return h.V }

// counter exposes a mutator with a pointer receiver.
type counter struct{ hits int }

func (c *counter) Increment() int {
	c.hits++
	return c.hits
}

func (c counter) Hits() int { return c.hits }

type stamped struct {
	time.Time

	Label string
}

func (s stamped) Name() string { return s.Label }

func (s stamped) MarshalJSON() ([]byte, error) { return []byte(`{}`), nil }

func (s stamped) Appendix() string { return "notes" }

type failingAccessor struct{}

func (failingAccessor) Value() (string, error) { return "", errors.New("nope") }

type panickingAccessor struct{}

func (panickingAccessor) Value() string { panic("accessor exploded") }

type duplicateAccessor struct{}

func (duplicateAccessor) GetName() string { return "a" }

func (duplicateAccessor) Name() string { return "b" }

func TestAccessorQueryMapEncoder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   any
		want    map[string]any
		wantErr bool
	}{
		{
			name:  "given accessors and aliases, then maps property names",
			input: accessorPage{number: 2, size: 10},
			want:  map[string]any{"number": 2, "pageSize": 10},
		},
		{
			name:  "given a pointer with a present slice, then includes it",
			input: &accessorPage{number: 1, tags: []string{"a"}},
			want:  map[string]any{"number": 1, "pageSize": 0, "tags": []string{"a"}},
		},
		{
			name:  "given an accessor returning the receiver, then omits it",
			input: &selfRef{n: 1},
			want:  map[string]any{"n": 1},
		},
		{
			name:  "given a self accessor over an unhashable field, then omits it without panicking",
			input: selfHolder{V: []int{1}},
			want:  map[string]any{"value": []int{1}},
		},
		{
			name:  "given a pointer receiver method, then it is not an accessor",
			input: &counter{hits: 3},
			want:  map[string]any{"hits": 3},
		},
		{
			name:  "given an embedded time and a marshaler, then only declared getters are used",
			input: stamped{Time: time.Unix(0, 0), Label: "x"},
			want:  map[string]any{"name": "x", "appendix": "notes"},
		},
		{
			name:    "given an accessor returning an error, then fails",
			input:   failingAccessor{},
			wantErr: true,
		},
		{
			name:    "given a panicking accessor, then fails",
			input:   panickingAccessor{},
			wantErr: true,
		},
		{
			name:    "given two accessors with the same property, then fails",
			input:   duplicateAccessor{},
			wantErr: true,
		},
		{
			name:  "given nil, then returns an empty map",
			input: nil,
			want:  map[string]any{},
		},
	}

	encoder := NewAccessorQueryMapEncoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := encoder.Encode(tt.input)
			if tt.wantErr {
				var encErr *EncodeError
				assert.ErrorAs(t, err, &encErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccessorQueryMapEncoder_DoesNotMutate(t *testing.T) {
	t.Parallel()

	c := &counter{}
	got, err := NewAccessorQueryMapEncoder().Encode(c)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hits": 0}, got)
	assert.Equal(t, 0, c.hits)
}

type concurrentFilter struct {
	Name  string `param:"name"`
	Limit int    `param:"limit"`
}

func (f concurrentFilter) Size() int { return f.Limit }

func TestQueryMapEncoders_ConcurrentFirstUse(t *testing.T) {
	t.Parallel()

	const workers = 16
	fields := NewFieldQueryMapEncoder()
	accessors := NewAccessorQueryMapEncoder()
	input := concurrentFilter{Name: "a", Limit: 5}

	var wg sync.WaitGroup
	fieldResults := make([]map[string]any, workers)
	accessorResults := make([]map[string]any, workers)
	errs := make([]error, 2*workers)
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			fieldResults[i], errs[2*i] = fields.Encode(input)
			accessorResults[i], errs[2*i+1] = accessors.Encode(&input)
		}()
	}
	close(start)
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[2*i])
		require.NoError(t, errs[2*i+1])
		assert.Equal(t, map[string]any{"name": "a", "limit": 5}, fieldResults[i])
		assert.Equal(t, map[string]any{"size": 5}, accessorResults[i])
	}
}

func TestPropertyName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "name", propertyName("GetName"))
	assert.Equal(t, "name", propertyName("Name"))
	assert.Equal(t, "getter", propertyName("Getter"))
	assert.Equal(t, "get", propertyName("Get"))
}
