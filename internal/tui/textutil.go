package tui

const ellipsis = "…"

// truncateEnd cuts s to limit runes, the last of which is an ellipsis when
// anything was dropped.
func truncateEnd(s string, limit int) string {
	r := []rune(s)
	switch {
	case limit <= 0:
		return ""
	case len(r) <= limit:
		return s
	case limit == 1:
		return ellipsis
	}
	return string(r[:limit-1]) + ellipsis
}

// truncateMiddle keeps both ends of s, for file paths and image references.
func truncateMiddle(s string, limit int) string {
	r := []rune(s)
	switch {
	case limit <= 0:
		return ""
	case len(r) <= limit:
		return s
	case limit < 3:
		return truncateEnd(s, limit)
	}
	head := (limit - 1) / 2
	tail := limit - 1 - head
	return string(r[:head]) + ellipsis + string(r[len(r)-tail:])
}

// clampRunes cuts s to at most limit runes without an ellipsis.
func clampRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:max(limit, 0)])
}
