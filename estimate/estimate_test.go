package estimate

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table() *Table {
	return &Table{
		Length:     2,
		NumSymbols: 2,
		Pos:        [][]float64{{0.25, 0.75}, {0.5, 0.5}},
		Neg:        [][]float64{{0.75, 0.25}, {1, 0}},
	}
}

func TestTable(t *testing.T) {
	tab := table()
	require.NoError(t, tab.Validate())
	assert.True(t, tab.Valid())
	assert.Equal(t, 8, tab.NumParams())
	assert.Equal(t, 4., tab.LogDerivativePos(0, 0))
	assert.Equal(t, 1., tab.LogDerivativeNeg(0, 1))
	assert.Equal(t, 4., tab.LogDerivativeNeg(1, 0))
	assert.True(t, math.IsInf(tab.LogDerivativeNeg(1, 1), 1))

	length, symbols := tab.Shape()
	assert.Equal(t, 2, length)
	assert.Equal(t, 2, symbols)
	var _ Shaped = tab

	var nilTable *Table
	assert.False(t, nilTable.Valid())
}

func TestValidate(t *testing.T) {
	for i, mutate := range []func(*Table){
		func(t *Table) { t.Length = 0 },
		func(t *Table) { t.Pos = t.Pos[:1] },
		func(t *Table) { t.Neg[0] = []float64{1} },
		func(t *Table) { t.Pos[0] = []float64{-0.5, 1.5} },
		func(t *Table) { t.Pos[1] = []float64{0.5, 0.6} },
		func(t *Table) { t.Pos[1] = []float64{1, 0} },
		func(t *Table) { t.Pos[0][0] = math.NaN() },
	} {
		tab := table()
		mutate(tab)
		err := tab.Validate()
		assert.ErrorIs(t, err, ErrInvalid, "%d", i)
		assert.False(t, tab.Valid(), "%d", i)
	}
}

func TestLoadSave(t *testing.T) {
	const doc = `
length: 2
symbols: 2
pos: [[0.25, 0.75], [0.5, 0.5]]
neg: [[0.75, 0.25], [1, 0]]
`
	tab, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, table(), tab)

	var buf bytes.Buffer
	require.NoError(t, tab.Save(&buf))
	again, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, tab, again)

	_, err = Load(strings.NewReader("length: 1\nsymbols: 2\npos: [[1, 1]]\nneg: [[0, 1]]\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(strings.NewReader("length: [\n"))
	assert.Error(t, err)
}
