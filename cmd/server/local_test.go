package main

import (
	"bytes"
	"context"
	"flag"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/passhash/internal/hasher"
	"github.com/opentrusty/passhash/internal/params"
)

func execute(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	require.NoError(t, f.Parse(args))
	return cmd.Execute(context.Background(), f)
}

func TestHashCmd(t *testing.T) {
	var out bytes.Buffer
	status := execute(t, newHashCmd(&out), "password=correct+horse&cpu=1&mem=64")
	require.Equal(t, subcommands.ExitSuccess, status)

	encoded := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=64,t=1,p=1$"), encoded)

	ok, err := hasher.Verify("correct horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashCmd_DefaultsAndLeadingQuestionMark(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, execute(t, newHashCmd(&out), "?cpu=1"))

	p, salt, _, err := hasher.Decode(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, params.DefaultMemoryKiB, p.MemoryKiB)
	assert.Equal(t, uint32(1), p.TimeCost)
	assert.Len(t, salt, int(hasher.DefaultSaltLength))
}

func TestHashCmd_SaltLengthFlag(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, subcommands.ExitSuccess, execute(t, newHashCmd(&out), "-salt-length", "32", "cpu=1&mem=64"))

	_, salt, _, err := hasher.Decode(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Len(t, salt, 32)
}

func TestHashCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want subcommands.ExitStatus
	}{
		{"parse error", []string{"mem=abc"}, subcommands.ExitFailure},
		{"invalid parameters", []string{"cpu=0"}, subcommands.ExitFailure},
		{"too many arguments", []string{"cpu=1", "mem=64"}, subcommands.ExitUsageError},
		{"salt length wraps uint32", []string{"-salt-length", "4294967304", "cpu=1&mem=64"}, subcommands.ExitUsageError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tt.want, execute(t, newHashCmd(&out), tt.args...))
			assert.Zero(t, out.Len())
		})
	}
}

func TestVerifyCmd(t *testing.T) {
	req := params.Default()
	req.TimeCost, req.MemoryKiB = 1, 64
	encoded, err := hasher.NewEngine().Execute(context.Background(), req)
	require.NoError(t, err)

	var out bytes.Buffer
	assert.Equal(t, subcommands.ExitSuccess, execute(t, newVerifyCmd(&out), "boson42", encoded))
	assert.Equal(t, "ok\n", out.String())

	out.Reset()
	assert.Equal(t, subcommands.ExitFailure, execute(t, newVerifyCmd(&out), "wrong", encoded))
	assert.Zero(t, out.Len())

	assert.Equal(t, subcommands.ExitFailure, execute(t, newVerifyCmd(&out), "boson42", "not-a-hash"))
	assert.Equal(t, subcommands.ExitUsageError, execute(t, newVerifyCmd(&out), "boson42"))
}
