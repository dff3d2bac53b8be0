package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/homeserve/marketplace-backend/internal/utils"
)

func main() {
	size := flag.Int("bytes", 32, "random bytes per secret (minimum 32)")
	keys := flag.String("keys", strings.Join(utils.SecretKeys, ","), "comma separated env keys to generate")
	flag.Parse()

	secrets, err := utils.GenerateEnvSecrets(*size, strings.Split(*keys, ",")...)
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("# Marketplace backend secrets")
	fmt.Println("# Add these to .env or your deployment secret store; keep them out of version control.")
	fmt.Print(utils.FormatEnv(secrets))
}
