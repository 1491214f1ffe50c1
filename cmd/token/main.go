// Command token mints an access token accepted by the reservation API.
//
//	token -user user-1 -role CUSTOMER -ttl 1h
//
// The signing secret is read from JWT_SECRET (a .env file is honoured).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/achtaA-a/projet-de-fin/internal/utils"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "", "subject (user id) of the token")
	role := flag.String("role", "CUSTOMER", "role claim: CUSTOMER or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	asJSON := flag.Bool("json", false, "print the token and its expiry as JSON")
	flag.Parse()

	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *user, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
	if *asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(tok)
		return
	}
	fmt.Println(tok.Token)
}
