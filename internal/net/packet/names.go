package packet

// base37Alphabet is indexed by the base-37 digit the client decodes.
const base37Alphabet = "_abcdefghijklmnopqrstuvwxyz0123456789"

// maxNameLength is the longest name that fits a base-37 long.
const maxNameLength = 12

// EncodeBase37 packs up to 12 name characters into a long. Letters are
// case-folded; anything outside [a-z0-9] becomes an underscore.
func EncodeBase37(name string) uint64 {
	var v uint64
	for i := 0; i < len(name) && i < maxNameLength; i++ {
		c := name[i]
		v *= 37
		switch {
		case c >= 'A' && c <= 'Z':
			v += uint64(c-'A') + 1
		case c >= 'a' && c <= 'z':
			v += uint64(c-'a') + 1
		case c >= '0' && c <= '9':
			v += uint64(c-'0') + 27
		}
	}
	for v != 0 && v%37 == 0 {
		v /= 37
	}
	return v
}

// DecodeBase37 reverses EncodeBase37. Invalid input decodes to "".
func DecodeBase37(v uint64) string {
	if v == 0 || v >= 0x5b5b57f8a98a5dd1 || v%37 == 0 {
		return ""
	}
	var out [maxNameLength]byte
	i := len(out)
	for v != 0 && i > 0 {
		i--
		out[i] = base37Alphabet[v%37]
		v /= 37
	}
	return string(out[i:])
}

// FormatName turns a stored name into display form: underscores become
// spaces and each word is capitalised.
func FormatName(name string) string {
	b := []byte(name)
	upper := true
	for i, c := range b {
		if c == '_' {
			b[i] = ' '
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		upper = false
	}
	return string(b)
}
