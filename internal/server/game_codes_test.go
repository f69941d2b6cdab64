package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateGameCodeFormat(t *testing.T) {
	used := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateGameCode(used)
		assert.NoError(t, ValidateGameCode(code))
		used[code] = true
	}
	assert.Len(t, used, 100)
}

func TestGenerateGameCodeSkipsUsed(t *testing.T) {
	// Saturate all but one code starting with 'A' for the first three
	// positions; generation must still terminate on an unused code.
	used := make(map[string]bool)
	for ch := 'A'; ch <= 'Z'; ch++ {
		for ch2 := 'A'; ch2 <= 'Z'; ch2++ {
			for ch3 := 'A'; ch3 <= 'Z'; ch3++ {
				for ch4 := 'A'; ch4 <= 'Z'; ch4++ {
					used[string([]byte{byte(ch), byte(ch2), byte(ch3), byte(ch4)})] = true
				}
			}
		}
	}
	delete(used, "QQQQ")

	assert.Equal(t, "QQQQ", GenerateGameCode(used))
}

func TestValidateGameCode(t *testing.T) {
	assert.NoError(t, ValidateGameCode("ABCD"))
	assert.NoError(t, ValidateGameCode("abcd"))

	assert.Error(t, ValidateGameCode(""))
	assert.Error(t, ValidateGameCode("ABC"))
	assert.Error(t, ValidateGameCode("ABCDE"))
	assert.Error(t, ValidateGameCode("AB1D"))
	assert.Error(t, ValidateGameCode("AB-D"))
}

func TestNormalizeGameCode(t *testing.T) {
	assert.Equal(t, "ABCD", NormalizeGameCode("abcd"))
	assert.Equal(t, "ABCD", NormalizeGameCode("ABCD"))
}
