// Package model defines the opaque classifier capability the pipeline
// depends on, plus the explicit imputation step that sits in front of it.
package model

import (
	"errors"

	"bhavcast/internal/features"
)

var ErrModelMissing = errors.New("trained model artifact not found")

// Prediction is one row's classification: the predicted label (1 = bullish
// next session, 0 = bearish) and the probability mass the classifier
// assigned to that label.
type Prediction struct {
	Label      int
	Confidence float64
}

// Classifier is the only capability the pipeline requires of a model. The
// concrete learning algorithm is pluggable behind it.
type Classifier interface {
	PredictBatch(x [][]float64) ([]Prediction, error)
}

// Imputer densifies feature rows for the classifier. Undefined values are
// replaced by Fill here and nowhere else; the feature engine never conflates
// "no data" with a number.
type Imputer struct {
	Fill float64
}

func (im Imputer) Matrix(rows []features.Row) [][]float64 {
	x := make([][]float64, len(rows))
	for i, r := range rows {
		x[i] = r.Floats(im.Fill)
	}
	return x
}
