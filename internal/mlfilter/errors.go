package mlfilter

import "errors"

var errWeightFeatureMismatch = errors.New("mlfilter: weights/feature_names length mismatch")
