// Package spam wraps the third-party spam-detection API behind a small
// classifier interface. Classification is asynchronous and best effort;
// a failing or slow classifier never blocks issue or comment creation.
package spam

import "context"

// Verdict is the classifier's answer for a piece of content.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictHam
	VerdictSpam
)

// Content is the text under review plus author hints that improve
// classification accuracy.
type Content struct {
	Text        string
	AuthorName  string
	AuthorEmail string
}

type Classifier interface {
	Classify(ctx context.Context, content Content) (Verdict, error)
}
