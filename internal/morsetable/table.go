// Package morsetable provides the bidirectional character/representation
// lookup shared by the transmitter's encoder and the receiver's decoder.
// Both directions are built from one ordered table of (rune,
// representation) pairs so they stay mechanically in sync: the decode
// direction is a binary tree built once at init, generalizing the
// teacher's hand-written MorseTree array (left child = dot, right
// child = dash) from its original letters-and-digits subset to the
// full printable set plus procedural signs.
package morsetable

import "strings"

type entry struct {
	char rune
	repr string
}

var table = []entry{
	{'A', ".-"}, {'B', "-..."}, {'C', "-.-."}, {'D', "-.."}, {'E', "."},
	{'F', "..-."}, {'G', "--."}, {'H', "...."}, {'I', ".."}, {'J', ".---"},
	{'K', "-.-"}, {'L', ".-.."}, {'M', "--"}, {'N', "-."}, {'O', "---"},
	{'P', ".--."}, {'Q', "--.-"}, {'R', ".-."}, {'S', "..."}, {'T', "-"},
	{'U', "..-"}, {'V', "...-"}, {'W', ".--"}, {'X', "-..-"}, {'Y', "-.--"},
	{'Z', "--.."},

	{'0', "-----"}, {'1', ".----"}, {'2', "..---"}, {'3', "...--"}, {'4', "....-"},
	{'5', "....."}, {'6', "-...."}, {'7', "--..."}, {'8', "---.."}, {'9', "----."},

	{'.', ".-.-.-"}, {',', "--..--"}, {'?', "..--.."}, {'\'', ".----."},
	{'!', "-.-.--"}, {'/', "-..-."}, {'(', "-.--."}, {')', "-.--.-"},
	{'&', ".-..."}, {':', "---..."}, {';', "-.-.-."}, {'=', "-...-"},
	{'+', ".-.-."}, {'-', "-....-"}, {'_', "..--.-"}, {'"', ".-..-."},
	{'$', "...-..-"}, {'@', ".--.-."},
}

// Prosigns maps each procedural sign to its concatenated element
// string, sent without inter-character spacing.
var Prosigns = map[string]string{
	"AR": ".-.-.",
	"SK": "...-.-",
	"BT": "-...-",
	"KN": "-.--.",
}

var (
	encodeTable = make(map[rune]string, len(table))

	// decodeTree is indexed like the teacher's MorseTree: index 1 is
	// the root, a dot moves to 2*i, a dash to 2*i+1. Depth 7 (index up
	// to 255) accommodates the longest representation in table, '$' at
	// "...-..-" (7 elements).
	decodeTree [256]rune

	prosignByRepresentation = make(map[string]string, len(Prosigns))
)

func init() {
	for _, e := range table {
		encodeTable[e.char] = e.repr

		idx := 1
		for _, el := range e.repr {
			if el == '.' {
				idx *= 2
			} else {
				idx = idx*2 + 1
			}
		}
		decodeTree[idx] = e.char
	}
	for name, repr := range Prosigns {
		prosignByRepresentation[repr] = name
	}
}

// Encode returns the dot/dash representation for a character, e.g.
// Encode('A') -> (".-", true). Input is matched case-insensitively for
// letters via EncodeText; Encode itself expects the table's own case
// (upper-case letters).
func Encode(r rune) (string, bool) {
	repr, ok := encodeTable[r]
	return repr, ok
}

// Lookup looks up the character for a dot/dash representation string
// (e.g. ".-" -> 'A'), mirroring the teacher's index-arithmetic binary
// tree walk. It reports ok=false for an unknown or malformed
// representation.
//
// A prosign's representation is identical to some punctuation mark's
// (e.g. "BT" and '=' are both "-...-") because both are built from the
// same dot/dash alphabet with no distinguishing timing once elements
// are reduced to a string — this table resolves the collision in favor
// of the single-character reading; callers that need prosign
// disambiguation should use LookupProsign instead or apply an
// out-of-band correction pass.
func Lookup(representation string) (rune, bool) {
	idx := 1
	for _, el := range representation {
		switch el {
		case '.':
			idx *= 2
		case '-':
			idx = idx*2 + 1
		default:
			return 0, false
		}
		if idx >= len(decodeTree) {
			return 0, false
		}
	}
	ch := decodeTree[idx]
	if ch == 0 {
		return 0, false
	}
	return ch, true
}

// LookupProsign looks up the procedural sign name for a representation
// string, e.g. "-...-" -> "BT".
func LookupProsign(representation string) (string, bool) {
	name, ok := prosignByRepresentation[representation]
	return name, ok
}

// EncodeText converts text to a sequence of dot/dash representations,
// one per character, skipping characters without a known encoding.
// Spaces in the input become empty-string entries marking a word
// boundary for the caller to render as inter-word spacing.
func EncodeText(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range strings.ToUpper(text) {
		if r == ' ' {
			out = append(out, "")
			continue
		}
		if repr, ok := Encode(r); ok {
			out = append(out, repr)
		}
	}
	return out
}
