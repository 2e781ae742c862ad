package model

import "math/rand/v2"

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewRunID returns a 7-character lowercase alphanumeric identifier, used for
// both run ids and record ids. Record ids are regenerated per question,
// independent of the run id, so records from different runs never collide.
func NewRunID() string {
	b := make([]byte, 7)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}
