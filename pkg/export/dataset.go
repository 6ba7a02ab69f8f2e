package export

// Dataset defines tabular export content. Sections split a document into
// independent tables, for example one weekly grid per batch.
type Dataset struct {
	Title    string
	Subtitle string
	Sections []Section
}

// Section is one titled table inside a dataset.
type Section struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func (d Dataset) empty() bool {
	for _, s := range d.Sections {
		if len(s.Headers) > 0 {
			return false
		}
	}
	return true
}
