// Package compare produces the per-field agreement signal between two
// versions of a transcribed subject.
//
// Each field scores 1 for an exact (case and whitespace insensitive) match, 0
// when the N/A sentinel faces a real value, and graded partial credit from the
// weighted edit distance otherwise. The headline alignment rating counts exact
// matches only; partial scores are diagnostic detail.
package compare
