package core

import (
	"crypto/rand"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// codeAlphabet deliberately matches what device clients and invite emails
// display: uppercase letters and digits only.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCode returns a random uppercase alphanumeric code of length n.
func RandomCode(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			log.Fatalf("core.RandomCode: %v", err) // rand.Reader failure is unrecoverable
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b)
}

// RandomDigits returns a random numeric string of length n (leading zeros allowed).
func RandomDigits(n int) string {
	const digits = "0123456789"
	b := make([]byte, n)
	max := big.NewInt(int64(len(digits)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			log.Fatalf("core.RandomDigits: %v", err)
		}
		b[i] = digits[idx.Int64()]
	}
	return string(b)
}

// Getwd tries to find the project root by walking up until go.mod is found.
// go-test changes the working directory to the test package being run...
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd // fall back to the actual working directory
		}
		currDir = newDir
	}
}
