package export

// Dataset defines tabular export content. Rows follow header order.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}
