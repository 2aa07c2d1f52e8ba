package layout

// GridShape is the fixed template used for a post's image grid.
type GridShape struct {
	Columns int
	Rows    int
}

// ShapeFor maps an image count to its grid template. The mapping is a pure
// lookup so the same count always yields the same arrangement.
func ShapeFor(count int) GridShape {
	if count <= 0 {
		return GridShape{}
	}
	var cols int
	switch {
	case count == 1:
		cols = 1
	case count == 2:
		cols = 2
	case count == 3:
		cols = 3
	case count == 4:
		cols = 2
	case count <= 9:
		cols = 3
	default:
		cols = 4
	}
	return GridShape{Columns: cols, Rows: (count + cols - 1) / cols}
}

// cellAspect is height over width for cells of multi-image grids.
const cellAspect = 0.75

type cell struct {
	index int
	box   Rect
}

type gridRow struct {
	height float64
	cells  []cell
}

// gridRows sizes the grid for images (given as pixel dimensions) inside a
// content area of the given width and height. Rows are never taller than
// rowCap. Cell boxes are relative to the row's top-left. Each image is fitted
// inside its cell and centred; a short final row is centred horizontally.
func gridRows(dims [][2]int, width, height, rowCap, gap, singleShare float64) []gridRow {
	shape := ShapeFor(len(dims))
	if shape.Columns == 0 {
		return nil
	}

	cellW := (width - float64(shape.Columns-1)*gap) / float64(shape.Columns)
	var cellH float64
	if len(dims) == 1 {
		cellH = cellW * float64(dims[0][1]) / float64(dims[0][0])
		if limit := height * singleShare; cellH > limit {
			cellH = limit
		}
	} else {
		cellH = cellW * cellAspect
	}
	if cellH > rowCap {
		cellH = rowCap
	}

	rows := make([]gridRow, 0, shape.Rows)
	for start := 0; start < len(dims); start += shape.Columns {
		end := min(start+shape.Columns, len(dims))
		n := end - start
		used := float64(n)*cellW + float64(n-1)*gap
		offset := (width - used) / 2

		row := gridRow{height: cellH}
		for i := start; i < end; i++ {
			x := offset + float64(i-start)*(cellW+gap)
			row.cells = append(row.cells, cell{index: i, box: fitInside(dims[i], Rect{X: x, W: cellW, H: cellH})})
		}
		rows = append(rows, row)
	}
	return rows
}

// fitInside scales an image of the given pixel size into box, preserving
// aspect ratio, and centres it.
func fitInside(dim [2]int, box Rect) Rect {
	w, h := float64(dim[0]), float64(dim[1])
	scale := min(box.W/w, box.H/h)
	dw, dh := w*scale, h*scale
	return Rect{
		X: box.X + (box.W-dw)/2,
		Y: box.Y + (box.H-dh)/2,
		W: dw,
		H: dh,
	}
}
