package cmd

import (
	"fmt"

	"github.com/hyperdrive-data/hyperdrive/internal/config"
	"github.com/hyperdrive-data/hyperdrive/internal/crypto"
)

// Salt prints a fresh random salt as a config.env line
func Salt() {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("SALT=%s\n", salt)
	fmt.Printf("# add the line above to %s; every machine decrypting these files needs the same value\n", config.EnvFile)
}
