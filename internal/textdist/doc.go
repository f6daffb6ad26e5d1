// Package textdist scores how far apart two transcribed field values are,
// using a weighted character edit distance normalized to [0, 1].
package textdist
