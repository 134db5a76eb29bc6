package cli

import (
	"fmt"

	"github.com/driftd/driftd/internal/signing"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ed25519 keypair for policy signing",
	RunE:  runKeygen,
}

var (
	keygenPrivateFlag string
	keygenPublicFlag  string
)

func init() {
	keygenCmd.Flags().StringVar(&keygenPrivateFlag, "private", "driftd.key", "Private key output path")
	keygenCmd.Flags().StringVar(&keygenPublicFlag, "public", "driftd.pub", "Public key output path")
}

// GetKeygenCmd export
func GetKeygenCmd() *cobra.Command {
	return keygenCmd
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if err := signing.GenerateKeys(keygenPrivateFlag, keygenPublicFlag); err != nil {
		return err
	}
	fmt.Printf("Private key: %s\n", keygenPrivateFlag)
	fmt.Printf("Public key: %s\n", keygenPublicFlag)
	fmt.Println("Keep the private key offline; distribute only the public key.")
	return nil
}
