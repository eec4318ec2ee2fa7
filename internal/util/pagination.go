package util

const DefaultPageSize = 10

// Clamp normalizes page/limit query values and returns the matching offset
// together with the values actually applied.
func Clamp(page, limit int) (offset, p, l int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = DefaultPageSize
	}
	return (page - 1) * limit, page, limit
}
