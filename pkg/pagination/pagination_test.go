package pagination

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"", 1, 20, 0},
		{"?page=3&per_page=10", 3, 10, 20},
		{"?page=-1", 1, 20, 0},
		{"?page=abc&per_page=xyz", 1, 20, 0},
		{"?per_page=100", 1, 100, 0},
		{"?per_page=101", 1, 20, 0},
		{"?per_page=0", 1, 20, 0},
		{"?page=4611686018427387904", 1, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := FromRequest(httptest.NewRequest(http.MethodGet, "/reviews"+tt.query, nil))
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset())
		})
	}
}

func TestWindow(t *testing.T) {
	p := Params{Page: 2, PerPage: 10}

	start, end := p.Window(25)
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)

	start, end = p.Window(15)
	assert.Equal(t, 10, start)
	assert.Equal(t, 15, end)

	start, end = p.Window(5)
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
}

func TestOffset_Saturates(t *testing.T) {
	assert.Equal(t, math.MaxInt, Params{Page: math.MaxInt / 2, PerPage: 20}.Offset())
	assert.Equal(t, 0, Params{Page: 0, PerPage: 20}.Offset())
	assert.Equal(t, 0, Params{Page: -5, PerPage: 20}.Offset())
}

func TestWindow_HugePage(t *testing.T) {
	p := Params{Page: 4611686018427387904, PerPage: 20}

	start, end := p.Window(3)
	assert.Equal(t, 3, start)
	assert.Equal(t, 3, end)
}

func TestNewResult(t *testing.T) {
	r := NewResult([]int{1, 2, 3}, 23, Params{Page: 2, PerPage: 10})
	assert.Equal(t, 3, r.TotalPages)
	assert.True(t, r.HasNext)
	assert.True(t, r.HasPrev)

	last := NewResult([]int{21, 22, 23}, 23, Params{Page: 3, PerPage: 10})
	assert.False(t, last.HasNext)

	empty := NewResult[int](nil, 0, DefaultParams())
	assert.NotNil(t, empty.Data)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}
