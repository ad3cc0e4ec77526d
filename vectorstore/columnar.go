package vectorstore

// rows is a columnar value buffer: row i occupies data[i*dim : (i+1)*dim].
// Freed rows are recycled before the buffer grows. Callers must hold the
// owning store's lock; rows itself does no synchronization.
type rows struct {
	dim  int
	data []float32
	free []int
}

func newRows(dim int) *rows {
	return &rows{
		dim:  dim,
		data: make([]float32, 0, 1024*dim),
	}
}

// add copies v into a free or freshly appended row and returns its index.
func (r *rows) add(v []float32) int {
	if n := len(r.free); n > 0 {
		row := r.free[n-1]
		r.free = r.free[:n-1]
		copy(r.data[row*r.dim:(row+1)*r.dim], v)
		return row
	}

	row := len(r.data) / r.dim
	r.data = append(r.data, v...)

	return row
}

// at returns the row as a view into the buffer; callers must not modify it
// and must copy before handing it out.
func (r *rows) at(row int) []float32 {
	return r.data[row*r.dim : (row+1)*r.dim]
}

// set replaces the row's values in place.
func (r *rows) set(row int, v []float32) {
	copy(r.data[row*r.dim:(row+1)*r.dim], v)
}

// release marks the row reusable. The values are not cleared; the next add
// overwrites them.
func (r *rows) release(row int) {
	r.free = append(r.free, row)
}

// count returns the number of live rows.
func (r *rows) count() int {
	return len(r.data)/r.dim - len(r.free)
}
