package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAccount(t *testing.T) {
	var out bytes.Buffer
	account, err := readAccount(strings.NewReader("  Alice \nAlice@Example.com\ncorrect horse battery\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, "Alice", account.DisplayName)
	assert.Equal(t, "Alice@Example.com", account.Email)
	assert.Equal(t, "correct horse battery", account.Password)
	assert.True(t, account.IsAdmin)
	assert.Equal(t, "Display name: Email: Password: ", out.String())
}

func TestReadAccountShortInput(t *testing.T) {
	_, err := readAccount(strings.NewReader("Alice\n"), io.Discard)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
