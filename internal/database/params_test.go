// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddDefaultParams(t *testing.T) {
	dsn := addDefaultParams("./data/auth.db")

	assert.True(t, strings.HasPrefix(dsn, "./data/auth.db?"))
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_pragma=busy_timeout(5000)")
	assert.Contains(t, dsn, "_pragma=foreign_keys(1)")
	assert.Equal(t, 1, strings.Count(dsn, "?"))
}

func TestAddDefaultParams_KeepsExisting(t *testing.T) {
	dsn := addDefaultParams("file.db?_txlock=deferred")

	assert.Equal(t, 1, strings.Count(dsn, "_txlock"))
	assert.Contains(t, dsn, "_txlock=deferred")
}

func TestIsMemory(t *testing.T) {
	assert.True(t, isMemory(":memory:"))
	assert.True(t, isMemory("file::memory:?mode=memory"))
	assert.False(t, isMemory("./data/auth.db"))
}
