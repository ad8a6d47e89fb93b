package common

// WipeByteArray overwrites the contents of b with zeros. Used to drop private
// key copies once they are no longer needed. Nil-safe.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
