// Package term filters the terminal escape sequences that must not reach
// the replay buffer verbatim.
//
// Two families matter here. CSI queries (DSR, DA) make the viewer's
// terminal answer with synthetic input when a stored copy is re-rendered,
// so they are stripped before replay. OSC 9 notifications are semantic
// events rather than output; they are lifted out of the byte stream and
// delivered as typed frames. OSC 0/2 titles are only parsed — the sequence
// itself stays in the stream.
package term

const (
	esc = 0x1b
	bel = 0x07
)

// StripQueries removes DSR cursor-position queries (CSI 6n / ?6n) and
// DA1/DA2/DA3 device-attribute queries (CSI c / >c / =c / 0c) from data.
// Every other escape sequence passes through untouched, as do incomplete
// sequences at the end of the input.
func StripQueries(data []byte) []byte {
	result := make([]byte, 0, len(data))
	i := 0

	for i < len(data) {
		if data[i] == esc && i+1 < len(data) && data[i+1] == '[' {
			j := i + 2
			// Parameter and intermediate bytes.
			for j < len(data) && data[j] >= 0x20 && data[j] <= 0x3f {
				j++
			}

			if j < len(data) {
				finalByte := data[j]
				params := string(data[i+2 : j])

				isDSR := finalByte == 'n' && (params == "6" || params == "?6")
				isDA := finalByte == 'c' &&
					(params == "" || params == ">" || params == "=" || params == "0")

				if isDSR || isDA {
					i = j + 1
					continue
				}
			}
		}

		result = append(result, data[i])
		i++
	}

	return result
}

// ParseTitle scans data for an OSC 0 or OSC 2 title sequence and returns
// the first title found. The terminator is BEL or ESC-backslash (ST).
func ParseTitle(data []byte) (string, bool) {
	for i := 0; i+3 < len(data); i++ {
		if data[i] != esc || data[i+1] != ']' {
			continue
		}
		if data[i+2] != '0' && data[i+2] != '2' {
			continue
		}
		if data[i+3] != ';' {
			continue
		}
		start := i + 4
		for end := start; end < len(data); end++ {
			if data[end] == bel {
				return string(data[start:end]), true
			}
			if data[end] == esc && end+1 < len(data) && data[end+1] == '\\' {
				return string(data[start:end]), true
			}
		}
	}
	return "", false
}

// ExtractNotifications removes every terminated OSC 9 sequence from data
// and returns the cleaned bytes plus the notification messages in order.
// An unterminated OSC 9 at the end of the input is left in place.
func ExtractNotifications(data []byte) ([]byte, []string) {
	var notifications []string
	cleaned := make([]byte, 0, len(data))
	i := 0

	for i < len(data) {
		if data[i] == esc && i+3 < len(data) && data[i+1] == ']' && data[i+2] == '9' && data[i+3] == ';' {
			start := i + 4
			found := false
			for end := start; end < len(data); end++ {
				if data[end] == bel {
					notifications = append(notifications, string(data[start:end]))
					i = end + 1
					found = true
					break
				}
				if data[end] == esc && end+1 < len(data) && data[end+1] == '\\' {
					notifications = append(notifications, string(data[start:end]))
					i = end + 2
					found = true
					break
				}
			}
			if found {
				continue
			}
		}
		cleaned = append(cleaned, data[i])
		i++
	}

	return cleaned, notifications
}
