package json

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

type scanState int

const (
	stValue      scanState = iota // a value is required
	stValueOrEnd                  // after '[': a value or ']'
	stKeyOrEnd                    // after '{': a key or '}'
	stKey                         // after ',' in an object
	stColon                       // after a key
	stCommaOrEnd                  // after a member or element
	stDone                        // after the top-level value
)

// frame is one open container. safe is the length of the text prefix at
// which the container can be closed and still hold only complete members.
type frame struct {
	kind  byte
	safe  int
	key   string
	index int
}

// repairResult is the outcome of a repair scan.
type repairResult struct {
	// text is the repaired document, "" when nothing could be recovered.
	text string
	// open is the dotted path of a string value closed by the repair.
	open string
	// fallbacks are cut points that keep only complete members, innermost
	// container first. Each closes every container still open around it.
	fallbacks []string
}

// repair scans text once, tracking open containers and string state, and
// returns a closed version of the longest usable prefix. Scanning stops at
// the first syntax error, which is treated like the end of the input.
func repair(text string) repairResult {
	sc := &scanner{text: text}
	sc.run()
	return sc.result()
}

type scanner struct {
	text   string
	pos    int
	state  scanState
	stack  []frame
	topEnd int

	// tail replaces the text when the input ends inside a scalar value: it
	// is the prefix up to that value followed by the value's completion.
	tail    string
	hasTail bool
	open    string
}

func (sc *scanner) run() {
	for sc.pos < len(sc.text) {
		c := sc.text[sc.pos]
		if isSpace(c) {
			sc.pos++
			continue
		}
		switch sc.state {
		case stDone:
			return
		case stValueOrEnd:
			if c == ']' {
				if !sc.closeContainer(c) {
					return
				}
				continue
			}
			sc.state = stValue
		case stValue:
			if !sc.value(c) {
				return
			}
		case stKeyOrEnd:
			if c == '}' {
				if !sc.closeContainer(c) {
					return
				}
				continue
			}
			sc.state = stKey
		case stKey:
			if c != '"' {
				return
			}
			end, ok := sc.scanString(sc.pos)
			if !ok {
				return
			}
			sc.top().key = decodeKey(sc.text[sc.pos:end])
			sc.pos = end
			sc.state = stColon
		case stColon:
			if c != ':' {
				return
			}
			sc.pos++
			sc.state = stValue
		case stCommaOrEnd:
			switch c {
			case ',':
				sc.pos++
				top := sc.top()
				if top.kind == '{' {
					sc.state = stKey
				} else {
					top.index++
					sc.state = stValue
				}
			case '}', ']':
				if !sc.closeContainer(c) {
					return
				}
			default:
				return
			}
		}
	}
}

// value consumes one value starting at c. It returns false when scanning
// must stop, either on a syntax error or at the end of the input.
func (sc *scanner) value(c byte) bool {
	switch {
	case c == '{' || c == '[':
		sc.stack = append(sc.stack, frame{kind: c, safe: sc.pos + 1})
		sc.pos++
		if c == '{' {
			sc.state = stKeyOrEnd
		} else {
			sc.state = stValueOrEnd
		}
		return true
	case c == '"':
		end, ok := sc.scanString(sc.pos)
		if !ok {
			cut := safeStringCut(sc.text, sc.pos+1)
			sc.setTail(sc.text[:cut] + `"`)
			sc.open = sc.path()
			return false
		}
		sc.pos = end
		sc.valueDone()
		return true
	case c == 't' || c == 'f' || c == 'n':
		lit := literalFor(c)
		j := sc.pos
		for j < len(sc.text) && j-sc.pos < len(lit) && sc.text[j] == lit[j-sc.pos] {
			j++
		}
		if j-sc.pos == len(lit) {
			sc.pos = j
			sc.valueDone()
			return true
		}
		if j == len(sc.text) {
			sc.setTail(sc.text[:sc.pos] + lit)
		}
		return false
	case c == '-' || isDigit(c):
		j := sc.pos
		for j < len(sc.text) && isNumberByte(sc.text[j]) {
			j++
		}
		num := sc.text[sc.pos:j]
		if j == len(sc.text) {
			if trimmed := trimNumber(num); trimmed != "" {
				sc.setTail(sc.text[:sc.pos] + trimmed)
			}
			return false
		}
		if !validNumber(num) {
			return false
		}
		sc.pos = j
		sc.valueDone()
		return true
	default:
		return false
	}
}

func (sc *scanner) valueDone() {
	if len(sc.stack) == 0 {
		sc.state = stDone
		sc.topEnd = sc.pos
		return
	}
	sc.top().safe = sc.pos
	sc.state = stCommaOrEnd
}

func (sc *scanner) closeContainer(c byte) bool {
	if len(sc.stack) == 0 || closer(sc.top().kind) != c {
		return false
	}
	sc.stack = sc.stack[:len(sc.stack)-1]
	sc.pos++
	sc.valueDone()
	return true
}

// scanString returns the index just past the closing quote of the string
// starting at start, or false when the input ends first.
func (sc *scanner) scanString(start int) (int, bool) {
	i := start + 1
	for i < len(sc.text) {
		switch sc.text[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1, true
		default:
			i++
		}
	}
	return 0, false
}

func (sc *scanner) top() *frame { return &sc.stack[len(sc.stack)-1] }

func (sc *scanner) setTail(s string) {
	sc.tail = s
	sc.hasTail = true
}

func (sc *scanner) path() string {
	segs := make([]string, 0, len(sc.stack))
	for _, f := range sc.stack {
		if f.kind == '{' {
			segs = append(segs, f.key)
		} else {
			segs = append(segs, strconv.Itoa(f.index))
		}
	}
	return strings.Join(segs, ".")
}

func (sc *scanner) result() repairResult {
	var b strings.Builder
	switch {
	case sc.hasTail:
		b.WriteString(sc.tail)
	case len(sc.stack) > 0:
		b.WriteString(sc.text[:sc.top().safe])
	case sc.state == stDone:
		b.WriteString(sc.text[:sc.topEnd])
	}
	for i := len(sc.stack) - 1; i >= 0; i-- {
		b.WriteByte(closer(sc.stack[i].kind))
	}
	r := repairResult{text: b.String(), open: sc.open}
	for k := len(sc.stack) - 1; k >= 0; k-- {
		var fb strings.Builder
		fb.WriteString(sc.text[:sc.stack[k].safe])
		for i := k; i >= 0; i-- {
			fb.WriteByte(closer(sc.stack[i].kind))
		}
		r.fallbacks = append(r.fallbacks, fb.String())
	}
	return r
}

// safeStringCut returns the end of the longest prefix of the string body
// starting at from that decodes to a prefix of every possible continuation.
// A dangling backslash, a partial \u escape, a trailing high surrogate
// escape waiting for its pair, and a truncated UTF-8 sequence are cut off.
func safeStringCut(s string, from int) int {
	i, high := from, -1
	for i < len(s) {
		if s[i] != '\\' {
			i++
			high = -1
			continue
		}
		if i+1 >= len(s) {
			return cutBefore(i, high)
		}
		if s[i+1] != 'u' {
			i += 2
			high = -1
			continue
		}
		if i+6 > len(s) {
			return cutBefore(i, high)
		}
		cp, err := strconv.ParseUint(s[i+2:i+6], 16, 32)
		if err != nil {
			return cutBefore(i, high)
		}
		if cp >= 0xD800 && cp <= 0xDBFF {
			high = i
		} else {
			high = -1
		}
		i += 6
	}
	if high >= 0 && high+6 == len(s) {
		return high
	}
	return trimPartialRune(s, from, len(s))
}

func cutBefore(i, high int) int {
	if high >= 0 && high+6 == i {
		return high
	}
	return i
}

func trimPartialRune(s string, from, end int) int {
	i := end - 1
	for i >= from && end-i < utf8.UTFMax && !utf8.RuneStart(s[i]) {
		i--
	}
	if i >= from && !utf8.FullRuneInString(s[i:end]) {
		return i
	}
	return end
}

func decodeKey(quoted string) string {
	var k string
	if err := json.Unmarshal([]byte(quoted), &k); err != nil {
		return strings.Trim(quoted, `"`)
	}
	return k
}

func literalFor(c byte) string {
	switch c {
	case 't':
		return "true"
	case 'f':
		return "false"
	default:
		return "null"
	}
}

func closer(kind byte) byte {
	if kind == '{' {
		return '}'
	}
	return ']'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNumberByte(c byte) bool {
	return isDigit(c) || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}

// trimNumber returns the longest prefix of num that is a valid JSON number.
func trimNumber(num string) string {
	for num != "" && !validNumber(num) {
		num = num[:len(num)-1]
	}
	return num
}

// validNumber reports whether s is a JSON number per RFC 8259.
func validNumber(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	switch {
	case i < len(s) && s[i] == '0':
		i++
	case i < len(s) && s[i] >= '1' && s[i] <= '9':
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	default:
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}
