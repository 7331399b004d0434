package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/service"
	"golang.org/x/term"
)

const minKeyLength = 12

// hash-key prints the bcrypt hash to put in OPERATOR_KEY_HASH.
func main() {
	cfg := config.Load()
	authService := service.NewAuthService(cfg, nil)

	fmt.Println("=== Hash Operator Key ===")

	fmt.Print("Enter Operator Key: ")
	key, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading key")
		os.Exit(1)
	}
	if len(key) < minKeyLength {
		fmt.Printf("Error: Key must be at least %d characters\n", minKeyLength)
		os.Exit(1)
	}

	fmt.Print("Confirm Operator Key: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading key")
		os.Exit(1)
	}
	if string(confirm) != string(key) {
		fmt.Println("Error: Keys do not match")
		os.Exit(1)
	}

	hash, err := authService.HashKey(string(key))
	if err != nil {
		fmt.Printf("Error hashing key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Add this to your environment:")
	fmt.Printf("OPERATOR_KEY_HASH=%s\n", hash)
}
