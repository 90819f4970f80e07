package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/app-sre/proms-mcp/internal/audit"
)

var fingerprintRaw bool

var tokenFingerprintCmd = &cobra.Command{
	Use:     "fingerprint [token]",
	Aliases: []string{"fp"},
	Short:   "Calculate the fingerprint of a credential",
	Long: `Calculates the one-way fingerprint of a credential. This is the value
used as the identity cache key and stored in the 'fingerprint' field of
audit entries; the credential itself never appears anywhere.`,
	Example: `  # Fingerprint a token
  proms-mcp token fingerprint sha256~abc...

  # Fingerprint a token from stdin
  oc whoami -t | proms-mcp token fingerprint -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := readCredentialArg(args[0])
		if err != nil {
			return err
		}
		if token == "" {
			return fmt.Errorf("token cannot be empty")
		}

		fp := audit.CredentialFingerprint(token)

		if fingerprintRaw {
			fmt.Println(fp)
		} else {
			fmt.Println("Fingerprint:", fp)
		}
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenFingerprintCmd)

	tokenFingerprintCmd.Flags().BoolVarP(&fingerprintRaw, "raw", "r", false,
		"Output only the fingerprint value without additional text")
}
