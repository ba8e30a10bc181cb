package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_InvalidConfigReturnsError(t *testing.T) {
	t.Setenv("CLASSIFIER", "bogus")

	err := run()
	assert.ErrorContains(t, err, "invalid configuration")
	assert.ErrorContains(t, err, "bogus")
}
