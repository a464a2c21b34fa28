package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/opentrusty/passhash/internal/hasher"
	"github.com/opentrusty/passhash/internal/params"
)

var errUsage = errors.New("usage")

// hashCmd runs one request through the same resolver and engine as the HTTP
// endpoint.
type hashCmd struct {
	out        io.Writer
	saltLength uint
}

func newHashCmd(out io.Writer) subcommands.Command { return &hashCmd{out: out} }

func (*hashCmd) Name() string     { return "hash" }
func (*hashCmd) Synopsis() string { return "Hash a password from a query string." }
func (*hashCmd) Usage() string {
	return "hash [-salt-length n] <query>:\n  Resolve a query such as 'password=x&cpu=3&mem=4096' and print the PHC string.\n"
}

func (c *hashCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.saltLength, "salt-length", uint(hasher.DefaultSaltLength), "salt size in bytes")
}

func (c *hashCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() > 1 {
		return exitStatus(fmt.Errorf("%w: expected at most one query argument", errUsage))
	}
	if c.saltLength > math.MaxUint32 {
		return exitStatus(fmt.Errorf("%w: -salt-length %d out of range", errUsage, c.saltLength))
	}
	return exitStatus(c.run(ctx, strings.TrimPrefix(f.Arg(0), "?")))
}

func (c *hashCmd) run(ctx context.Context, query string) error {
	req, err := params.ResolveQuery(query)
	if err != nil {
		return err
	}

	engine := hasher.NewEngine(hasher.WithSaltLength(uint32(c.saltLength)))
	encoded, err := engine.Execute(ctx, req)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.out, encoded)
	return err
}

type verifyCmd struct {
	out io.Writer
}

func newVerifyCmd(out io.Writer) subcommands.Command { return &verifyCmd{out: out} }

func (*verifyCmd) Name() string             { return "verify" }
func (*verifyCmd) Synopsis() string         { return "Verify a password against a PHC string." }
func (*verifyCmd) Usage() string            { return "verify <password> <phc>:\n  Exit 0 when the password matches.\n" }
func (*verifyCmd) SetFlags(_ *flag.FlagSet) {}

func (c *verifyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return exitStatus(fmt.Errorf("%w: expected <password> <phc>", errUsage))
	}
	return exitStatus(c.run(f.Arg(0), f.Arg(1)))
}

var errMismatch = errors.New("password does not match")

func (c *verifyCmd) run(password, encoded string) error {
	ok, err := hasher.Verify(password, encoded)
	if err != nil {
		return fmt.Errorf("invalid PHC string: %w", err)
	}
	if !ok {
		return errMismatch
	}
	_, err = fmt.Fprintln(c.out, "ok")
	return err
}

func exitStatus(err error) subcommands.ExitStatus {
	switch {
	case err == nil:
		return subcommands.ExitSuccess
	case errors.Is(err, errUsage):
		failure(os.Stderr, err)
		return subcommands.ExitUsageError
	default:
		failure(os.Stderr, err)
		return subcommands.ExitFailure
	}
}

func failure(w io.Writer, err error) {
	fmt.Fprintf(w, "[!] exited with %s\n", err)
}
