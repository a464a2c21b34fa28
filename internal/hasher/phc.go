package hasher

import (
	"encoding/base64"
	"fmt"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters plus output sizes.
type Params struct {
	MemoryKiB   uint32
	TimeCost    uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  uint32
}

// Validate checks the parameters against Argon2id's minimums.
func (p Params) Validate() error {
	if p.TimeCost < 1 {
		return invalidParams("time cost must be >= 1, got %d", p.TimeCost)
	}
	if p.Parallelism < 1 {
		return invalidParams("parallelism must be >= 1, got %d", p.Parallelism)
	}
	if p.MemoryKiB < 8*uint32(p.Parallelism) {
		return invalidParams("memory (%d KiB) must be >= 8 x parallelism (%d KiB)",
			p.MemoryKiB, 8*uint32(p.Parallelism))
	}
	if p.KeyLength < 4 {
		return invalidParams("key length must be >= 4, got %d", p.KeyLength)
	}
	if p.SaltLength < 8 {
		return invalidParams("salt length must be >= 8, got %d", p.SaltLength)
	}
	return nil
}

// Encode formats a derived key as a PHC string:
//
//	$argon2id$v=19$m=1000,t=5,p=1$<salt>$<key>
func Encode(p Params, salt, key []byte) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.MemoryKiB,
		p.TimeCost,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// Decode parses a PHC string produced by Encode.
func Decode(encoded string) (Params, []byte, []byte, error) {
	p, salt, key, err := argon2id.DecodeHash(encoded)
	if err != nil {
		return Params{}, nil, nil, err
	}
	return Params{
		MemoryKiB:   p.Memory,
		TimeCost:    p.Iterations,
		Parallelism: p.Parallelism,
		KeyLength:   p.KeyLength,
		SaltLength:  p.SaltLength,
	}, salt, key, nil
}

// Verify reports whether password matches the PHC string.
func Verify(password, encoded string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encoded)
}

func selfCheck(password, encoded string, want Params) error {
	got, _, _, err := Decode(encoded)
	if err != nil {
		return fmt.Errorf("decode own output: %w", err)
	}
	if got != want {
		return fmt.Errorf("encoded parameters %+v do not match requested %+v", got, want)
	}

	ok, err := Verify(password, encoded)
	if err != nil {
		return fmt.Errorf("verify own output: %w", err)
	}
	if !ok {
		return fmt.Errorf("password failed verification with its own PHC string")
	}
	return nil
}
