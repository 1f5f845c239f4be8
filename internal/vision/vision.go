// Package vision wraps the model calls the pipeline delegates to: person
// detection, aesthetic scoring, and style transfer.
package vision

import "context"

// Verdict is the result of a person check.
type Verdict struct {
	Person     bool
	Label      string
	Confidence float64
}

// Classifier decides whether an image contains a person.
type Classifier interface {
	HasPerson(ctx context.Context, imagePath string) (*Verdict, error)
}

// Scorer rates an image's aesthetic quality on a 0-100 scale.
type Scorer interface {
	Score(ctx context.Context, imagePath string) (float64, error)
}

// Stylizer redraws the image at srcPath as an illustration, writing the
// result to dstPath.
type Stylizer interface {
	Stylize(ctx context.Context, srcPath, dstPath string) error
}
