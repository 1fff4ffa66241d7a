package gdr

// =====================================
// Query Templates
// =====================================

// scanTemplate scans an explicit query template for placeholders and
// splits the text around them. Named placeholders use `:identifier`;
// positional ones use `?` or an explicit 1-based ordinal `?3`. The
// two styles are mutually exclusive within one template, as are bare
// and ordinal positional markers. String literals, quoted identifiers
// and `::type` casts are skipped.
//
// The query grammar itself is never parsed; everything between
// placeholders is forwarded to the backend opaque.
func scanTemplate(raw string) (*TemplatePlan, error) {
	tpl := &TemplatePlan{
		Raw:   raw,
		Style: StyleNone,
	}

	var (
		fragStart  = 0
		bareCount  = 0
		sawBare    = false
		sawOrdinal = false
		inSingle   = false
		inDouble   = false
	)

	setStyle := func(style PlaceholderStyle) error {
		if tpl.Style == StyleNone {
			tpl.Style = style
			return nil
		}
		if tpl.Style != style {
			return NewErrorf(ErrorKindInconsistentPlaceholderStyle,
				"template mixes named and positional placeholders: %q", raw)
		}
		return nil
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case inSingle:
			if c == '\'' {
				// Doubled quote escapes inside a literal.
				if i+1 < len(raw) && raw[i+1] == '\'' {
					i++
				} else {
					inSingle = false
				}
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == ':':
			if i+1 < len(raw) && raw[i+1] == ':' {
				i++ // ::type cast
				continue
			}
			start := i + 1
			end := start
			for end < len(raw) && isIdentChar(raw[end], end > start) {
				end++
			}
			if end == start {
				continue // bare colon
			}
			if err := setStyle(StyleNamed); err != nil {
				return nil, err
			}
			tpl.Fragments = append(tpl.Fragments, raw[fragStart:i])
			tpl.Placeholders = append(tpl.Placeholders, Placeholder{Name: raw[start:end]})
			fragStart = end
			i = end - 1
		case c == '?':
			start := i + 1
			end := start
			for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
				end++
			}
			if err := setStyle(StylePositional); err != nil {
				return nil, err
			}
			ordinal := 0
			if end > start {
				sawOrdinal = true
				for j := start; j < end; j++ {
					ordinal = ordinal*10 + int(raw[j]-'0')
				}
				if ordinal == 0 {
					return nil, NewErrorf(ErrorKindConfiguration,
						"template placeholder ordinals are 1-based: %q", raw)
				}
			} else {
				sawBare = true
				bareCount++
				ordinal = bareCount
			}
			tpl.Fragments = append(tpl.Fragments, raw[fragStart:i])
			tpl.Placeholders = append(tpl.Placeholders, Placeholder{Ordinal: ordinal})
			fragStart = end
			i = end - 1
		}
	}

	if sawBare && sawOrdinal {
		return nil, NewErrorf(ErrorKindInconsistentPlaceholderStyle,
			"template mixes bare and ordinal positional placeholders: %q", raw)
	}

	tpl.Fragments = append(tpl.Fragments, raw[fragStart:])
	return tpl, nil
}

// templateParamCount returns how many distinct parameters a scanned
// template consumes: the highest ordinal for positional style, the
// distinct-name count for named style.
func templateParamCount(tpl *TemplatePlan) int {
	switch tpl.Style {
	case StylePositional:
		max := 0
		for _, p := range tpl.Placeholders {
			if p.Ordinal > max {
				max = p.Ordinal
			}
		}
		return max
	case StyleNamed:
		seen := make(map[string]struct{})
		for _, p := range tpl.Placeholders {
			seen[p.Name] = struct{}{}
		}
		return len(seen)
	default:
		return 0
	}
}

func isIdentChar(c byte, notFirst bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return true
	case c >= '0' && c <= '9':
		return notFirst
	}
	return false
}
