package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"frauddetect/pkg/logger"
)

func TestWaitForKey(t *testing.T) {
	log := logger.Discard().WithComponent("cli")

	var out bytes.Buffer
	assert.True(t, waitForKey(strings.NewReader("\n"), &out, log))
	assert.Equal(t, "Press any key to exit...\n", out.String())

	assert.False(t, waitForKey(strings.NewReader(""), &bytes.Buffer{}, log))
}

func TestRootCommandFlags(t *testing.T) {
	cmd := (&app{log: logger.Discard()}).rootCmd()
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.Flags().Lookup("no-wait"))

	predict, _, err := cmd.Find([]string{"predict"})
	assert.NoError(t, err)
	for _, name := range []string{"model", "input", "count", "from-store"} {
		assert.NotNil(t, predict.Flags().Lookup(name), name)
	}
}
