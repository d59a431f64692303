package main

import (
	"log"

	"github.com/ogazboiz/sonic-rush/services/vaultd"
)

func main() {
	if err := vaultd.Main(); err != nil {
		log.Fatalf("vaultd: %v", err)
	}
}
