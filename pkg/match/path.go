package match

import "strconv"

// Paths address locations inside a nested Value. The root is the empty
// string; descending into object key "k" from path "p" yields "p.k" (or
// "k" at the root), and descending into sequence index i yields "p[i]".
// Example: "data.items[2].id".

// JoinKey returns the path of object key k under parent path p.
func JoinKey(p, k string) string {
	if p == "" {
		return k
	}
	return p + "." + k
}

// JoinIndex returns the path of sequence index i under parent path p.
func JoinIndex(p string, i int) string {
	return p + "[" + strconv.Itoa(i) + "]"
}
