// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		code, err := generateCode(CodeLength)
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		assert.False(t, seen[code], "duplicate code generated")
		seen[code] = true
	}
}

func TestFormatCode(t *testing.T) {
	assert.Equal(t, "abcd-efgh", formatCode("abcdefgh"))
	assert.Equal(t, "abcd-ef", formatCode("abcdef"))
}
