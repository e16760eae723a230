// Package main は ADMIN_PASSWORD_HASH 設定用のbcryptハッシュを生成するオフラインツールです。
package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

const hashCost = 10

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: hashgen <password>")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), hashCost)
	if err != nil {
		log.Fatalf("Failed to generate hash: %v", err)
	}

	fmt.Println("---------------------------------------------------")
	fmt.Println("Bcrypt Hash:", string(hash))
	fmt.Println("---------------------------------------------------")
	fmt.Println("Copy the hash above and paste it into your .env file")
	fmt.Println("as ADMIN_PASSWORD_HASH=...")
	fmt.Println("---------------------------------------------------")
}
