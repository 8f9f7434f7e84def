package dataset

import (
	"errors"
	"math"
	"math/rand"
)

// TrainTestSplit shuffles row positions with a seeded source and puts the first
// ceil(n*testRatio) of them in the test partition. The same seed always yields
// the same partitions.
func TrainTestSplit(t *Table, testRatio float64, seed int64) (train, test *Table, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.New("test ratio must be in (0, 1)")
	}
	n := t.Len()
	testSize := int(math.Ceil(float64(n) * testRatio))
	if testSize == 0 || testSize >= n {
		return nil, nil, errors.New("not enough rows to split")
	}

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)

	return t.Subset(indices[testSize:]), t.Subset(indices[:testSize]), nil
}
