package escore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsValidateForRead(t *testing.T) {
	a, b := "a", "b"
	err := Options{LowerBoundInclusive: &a, LowerBoundExclusive: &b}.validateForRead()
	assert.Error(t, err)
	assert.True(t, IsNonTransient(err))
}

func TestOptionsValidateForObserveRejectsOrder(t *testing.T) {
	order := Antichronological
	err := Options{Order: &order}.validateForObserve()
	assert.Error(t, err)
}

func TestOptionsValidateForObserveRejectsUpperBound(t *testing.T) {
	b := "b"
	err := Options{UpperBoundInclusive: &b}.validateForObserve()
	assert.Error(t, err)
}

func TestOptionsValidateForObserveAcceptsLowerBound(t *testing.T) {
	b := "b"
	err := Options{LowerBoundExclusive: &b}.validateForObserve()
	assert.NoError(t, err)
}
