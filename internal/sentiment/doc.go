// Package sentiment implements the word classifier.
//
// Categorize labels a submission (test / repetitive / minimal / expressive / neutral) and
// Analyze scores it word by word against the VADER lexicon. Both are pure: no state, no I/O.
package sentiment
