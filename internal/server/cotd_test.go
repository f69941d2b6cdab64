package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOfTheDayAvailableAtStartup(t *testing.T) {
	c := newCategoryOfTheDay()

	value, updatedAt := c.current()
	assert.Contains(t, categoryPool, value)
	assert.False(t, updatedAt.IsZero())
}

func TestCategoryOfTheDayRefreshAvoidsRepeat(t *testing.T) {
	c := newCategoryOfTheDay()

	for i := 0; i < 50; i++ {
		previous, _ := c.current()
		c.refresh()
		value, _ := c.current()
		assert.NotEqual(t, previous, value)
		assert.Contains(t, categoryPool, value)
	}
}
