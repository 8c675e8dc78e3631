package signing

// RemoveEmptyEntries returns a copy of params without entries whose value is
// nil or the empty string. Zero numbers and false are kept.
func RemoveEmptyEntries(params ParameterSet) ParameterSet {
	out := make(ParameterSet, len(params))
	for k, v := range params {
		if isEmpty(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// RemoveEmptyStrings is RemoveEmptyEntries for plain string maps.
func RemoveEmptyStrings(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}
