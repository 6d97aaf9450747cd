package sensor

// FakeReader is a test double that returns scripted values.
type FakeReader struct {
	// Values contains scripted readings. Each call to Read() consumes the
	// next value; once exhausted the last value repeats.
	Values []float64

	// index tracks current position in Values
	index int

	// Reads counts calls to Read.
	Reads int

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given values.
func NewFakeReader(values ...float64) *FakeReader {
	return &FakeReader{Values: values}
}

// Read returns the next scripted value.
func (f *FakeReader) Read() (float64, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Values) == 0 {
		return 0, ErrNoValue
	}

	v := f.Values[f.index]
	if f.index < len(f.Values)-1 {
		f.index++
	}
	return v, nil
}
