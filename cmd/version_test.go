package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	tests := []struct {
		version string
		want    string
	}{
		{version: "1.2.3-test", want: "steward version 1.2.3-test\n"},
		{version: "", want: "steward version \n"},
	}
	for _, tt := range tests {
		rootCmd.Version = tt.version

		versionCmd := newVersionCmd()
		var buf bytes.Buffer
		versionCmd.SetOut(&buf)
		versionCmd.Run(versionCmd, nil)

		assert.Equal(t, tt.want, buf.String())
	}
}

func TestVersionCmd_Help(t *testing.T) {
	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.SetErr(&buf)
	versionCmd.SetArgs([]string{"--help"})

	require.NoError(t, versionCmd.Execute())
	assert.Contains(t, buf.String(), "This is steward's")
}
