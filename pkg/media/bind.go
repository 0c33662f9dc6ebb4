package media

// Mode controls how uploaded URLs combine with a field's current value.
type Mode int

// Binding modes.
const (
	// Single replaces the value with the last uploaded URL.
	Single Mode = iota
	// Multi appends every uploaded URL.
	Multi
)

// Bind returns the new field value after an upload produced urls. The
// current value is kept when nothing was uploaded.
func Bind(mode Mode, current, urls []string) []string {
	if len(urls) == 0 {
		return current
	}

	if mode == Single {
		return []string{urls[len(urls)-1]}
	}

	out := make([]string, 0, len(current)+len(urls))
	out = append(out, current...)

	return append(out, urls...)
}
