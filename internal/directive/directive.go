package directive

import (
	"regexp"
	"strconv"
)

// Keyword is the literal that opens a table-of-contents directive.
const Keyword = "!contents"

// pattern is anchored at the start of the input and requires a line
// terminator. Group 1 is the -R flag, group 2 its optional digit run,
// group 3 the -g flag.
var pattern = regexp.MustCompile(`^!contents( -R([0-9]*))?( -g)?[ \t]*(?:\r\n|\n|\r)`)

// Invocation is a fully parsed !contents directive.
type Invocation struct {
	Text      string // matched line without its terminator
	Len       int    // bytes consumed from the input, terminator included
	Recursive bool
	MaxDepth  *int // nil means unbounded; only set when Recursive
	Regrace   bool
}

// Match reports the directive at the start of line, or nil when line does
// not begin with a well-formed directive.
func Match(line string) *Invocation {
	loc := pattern.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil
	}

	end := loc[1]
	for end > 0 && (line[end-1] == '\n' || line[end-1] == '\r') {
		end--
	}

	inv := &Invocation{
		Text:      line[:end],
		Len:       loc[1],
		Recursive: loc[2] >= 0,
		Regrace:   loc[6] >= 0,
	}
	if loc[4] >= 0 && loc[5] > loc[4] {
		n, err := strconv.Atoi(line[loc[4]:loc[5]])
		if err != nil {
			return nil
		}
		inv.MaxDepth = &n
	}
	return inv
}

// Valid checks the invariants Match always upholds, for invocations that
// were built by hand.
func (inv Invocation) Valid() bool {
	if inv.MaxDepth == nil {
		return true
	}
	return inv.Recursive && *inv.MaxDepth >= 0
}

// Depth returns the recursion budget: 0 for a flat listing, -1 for
// unbounded.
func (inv Invocation) Depth() int {
	switch {
	case !inv.Recursive:
		return 0
	case inv.MaxDepth == nil:
		return -1
	default:
		return *inv.MaxDepth
	}
}
