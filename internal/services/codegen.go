package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"swarm-backend/internal/models"
)

// CodeGenerator produces random invite codes
type CodeGenerator struct {
	alphabet string
	length   int
	attempts int
}

// NewCodeGenerator creates a new code generator
func NewCodeGenerator(alphabet string, length, attempts int) *CodeGenerator {
	return &CodeGenerator{
		alphabet: alphabet,
		length:   length,
		attempts: attempts,
	}
}

// Attempts returns the number of candidates tried before giving up
func (g *CodeGenerator) Attempts() int {
	return g.attempts
}

// Candidate returns one random code
func (g *CodeGenerator) Candidate() (string, error) {
	code := make([]byte, g.length)
	max := big.NewInt(int64(len(g.alphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		code[i] = g.alphabet[n.Int64()]
	}
	return string(code), nil
}

// Generate draws candidates and hands each one to claim until claim accepts
// it. claim reports taken for a collision, and every collision uses up an
// attempt. Once all attempts collide it returns ErrCodeExhausted.
func (g *CodeGenerator) Generate(ctx context.Context, claim func(ctx context.Context, code string) (taken bool, err error)) (string, error) {
	for i := 0; i < g.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.Candidate()
		if err != nil {
			return "", err
		}
		taken, err := claim(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", models.ErrCodeExhausted
}

// NormalizeCode upper-cases and trims an invite code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
