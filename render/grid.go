package render

import (
	"math"

	"github.com/xlab/linmath"
)

// GridSpacing is the distance between neighbouring grid cells.
const GridSpacing = 1.5

// GridShape returns the rows and columns of the square-ish grid used for
// population instances: rows = floor(sqrt(n)) and cols = ceil(n/rows).
// Populations below one are treated as one.
func GridShape(population int) (rows, cols int) {
	if population < 1 {
		population = 1
	}
	rows = int(math.Floor(math.Sqrt(float64(population))))
	cols = int(math.Ceil(float64(population) / float64(rows)))
	return rows, cols
}

// GridSlot returns the cell of the instance at index in a grid laid out for
// population instances. index may be past the population, in which case the
// cell lies beyond the grid's last row.
func GridSlot(index, population int) (row, col int) {
	_, cols := GridShape(population)
	return index / cols, index % cols
}

// GridTranslation is the translation of a grid cell.
func GridTranslation(row, col int) (x, y, z float32) {
	return GridSpacing * float32(col), GridSpacing * float32(row), 0
}

// LayoutGrid returns count instances arranged in a grid. The result only
// depends on count.
func LayoutGrid(count int) []InstanceData {
	instances := make([]InstanceData, count)
	for i := range instances {
		row, col := GridSlot(i, count)
		instances[i].Model.Identity()
		instances[i].Model.TranslateInPlace(GridTranslation(row, col))
	}
	return instances
}

// AppendSlot returns the grid cell given to an instance appended to a
// population of previous instances. The cell is computed with the grid shape of
// the previous population, not the grown one, so once the population crosses a
// row boundary the new instance can land outside the cell a grid of the new
// size would give it.
func AppendSlot(previous int) (row, col int) {
	return GridSlot(previous, previous)
}

// translation returns the translation column of a model matrix.
func translation(m *linmath.Mat4x4) (x, y, z float32) {
	return m[3][0], m[3][1], m[3][2]
}
