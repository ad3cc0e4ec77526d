// Package metadata handles the string-keyed metadata attached to vectors
// and knowledge records.
//
// The core boundary keeps metadata as string→string for portability.
// Recognized keys can be validated against a declared Schema at
// insert/update time; unrecognized keys pass through untouched.
package metadata
