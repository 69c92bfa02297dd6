package nixie

// Tubes is the number of tubes in the shift register chain.
const Tubes = 8

// SelectBits maps a tube position to the bit that enables its anode.
var SelectBits = [Tubes]uint{11, 10, 9, 8, 15, 14, 13, 12}

// charBits maps a character to the bit that lights its cathode.
var charBits = map[rune]uint{
	'0': 7,
	'1': 18,
	'2': 19,
	'3': 20,
	'4': 21,
	'5': 22,
	'6': 3,
	'7': 4,
	'8': 5,
	'9': 6,
	'.': 17,
}

// Encode returns the 24-bit shift register word that shows c on tube. A
// character without a cathode (such as a space) encodes as the select bit
// alone, which leaves the tube dark, and ok is false. A tube outside the
// chain encodes as 0 with ok false.
func Encode(c rune, tube int) (word uint32, ok bool) {
	if tube < 0 || tube >= Tubes {
		return 0, false
	}
	word = 1 << SelectBits[tube]
	bit, ok := charBits[c]
	if ok {
		word |= 1 << bit
	}
	return word, ok
}

// Bytes splits a word into the three bytes sent on the bus, most significant
// first.
func Bytes(word uint32) [3]byte {
	return [3]byte{byte(word >> 16), byte(word >> 8), byte(word)}
}

