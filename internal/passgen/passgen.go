// Package passgen synthesises random passwords from a configurable set of
// character classes using a cryptographically secure random source.
package passgen

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Lowercase = "abcdefghijklmnopqrstuvwxyz"
	Uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Numbers   = "0123456789"
	Symbols   = "!@#$%^&*()-_=+[]{}|;:,.<>?"
)

// DefaultLength is the length used when no explicit length is configured.
const DefaultLength = 20

// ErrNoCharacterClasses is returned when every character class is disabled.
var ErrNoCharacterClasses = errors.New("at least one character class must be enabled")

// Options selects the password length and enabled character classes.
type Options struct {
	Length  int
	Lower   bool
	Upper   bool
	Numbers bool
	Symbols bool
}

// DefaultOptions enables every class at DefaultLength.
func DefaultOptions() Options {
	return Options{Length: DefaultLength, Lower: true, Upper: true, Numbers: true, Symbols: true}
}

// Generator produces passwords from a random byte stream.
type Generator struct {
	rand io.Reader
}

// New returns a Generator reading from crypto/rand.
func New() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewWithReader returns a Generator reading from r. Only tests should pass
// anything other than crypto/rand.Reader.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate returns a password satisfying opts. The result contains at least
// one character from every enabled class and is at least as long as the
// number of enabled classes.
func (g *Generator) Generate(opts Options) (string, error) {
	sets := opts.sets()
	if len(sets) == 0 {
		return "", ErrNoCharacterClasses
	}

	length := opts.Length
	if length < len(sets) {
		length = len(sets)
	}

	pool := ""
	for _, s := range sets {
		pool += s
	}

	out := make([]byte, 0, length)
	for _, s := range sets {
		c, err := g.pick(s)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := g.pick(pool)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	for i := len(out) - 1; i > 0; i-- {
		j, err := g.uint32()
		if err != nil {
			return "", err
		}
		k := int(j % uint32(i+1))
		out[i], out[k] = out[k], out[i]
	}

	return string(out), nil
}

func (o Options) sets() []string {
	var sets []string
	if o.Lower {
		sets = append(sets, Lowercase)
	}
	if o.Upper {
		sets = append(sets, Uppercase)
	}
	if o.Numbers {
		sets = append(sets, Numbers)
	}
	if o.Symbols {
		sets = append(sets, Symbols)
	}
	return sets
}

func (g *Generator) pick(set string) (byte, error) {
	n, err := g.uint32()
	if err != nil {
		return 0, err
	}
	return set[n%uint32(len(set))], nil
}

func (g *Generator) uint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(g.rand, buf[:]); err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
