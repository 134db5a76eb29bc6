package cli

import (
	"fmt"

	"github.com/driftd/driftd/internal/compiler"
	"github.com/driftd/driftd/internal/signing"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Validate and sign policy documents",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate --policy <file>",
	Short: "Compile a policy and print its version and evaluation order",
	Long: `Compiles the policy without touching any host. Prints the content-hash
version and the dependency-resolved evaluation order.

Exit code 2 on compile error, matching 'driftd run'.`,
	RunE: runPolicyValidate,
}

var policySignCmd = &cobra.Command{
	Use:   "sign --policy <file> --key <private-key>",
	Short: "Write a detached ed25519 signature for a policy",
	RunE:  runPolicySign,
}

var policyVerifyCmd = &cobra.Command{
	Use:   "verify --policy <file> --key <public-key>",
	Short: "Verify a policy against its detached signature",
	RunE:  runPolicyVerify,
}

var (
	policyFileFlag string
	policyKeyFlag  string
	policySigFlag  string
)

func init() {
	for _, c := range []*cobra.Command{policyValidateCmd, policySignCmd, policyVerifyCmd} {
		c.Flags().StringVar(&policyFileFlag, "policy", "", "Policy document path or oci://<ref> (required)")
		_ = c.MarkFlagRequired("policy")
	}
	policySignCmd.Flags().StringVar(&policyKeyFlag, "key", "", "Private key path (required)")
	policyVerifyCmd.Flags().StringVar(&policyKeyFlag, "key", "", "Public key path (required)")
	policyVerifyCmd.Flags().StringVar(&policySigFlag, "sig", "", "Signature path (default <policy>.sig)")
	_ = policySignCmd.MarkFlagRequired("key")
	_ = policyVerifyCmd.MarkFlagRequired("key")

	policyCmd.AddCommand(policyValidateCmd)
	policyCmd.AddCommand(policySignCmd)
	policyCmd.AddCommand(policyVerifyCmd)
}

// GetPolicyCmd export
func GetPolicyCmd() *cobra.Command {
	return policyCmd
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	raw, err := compiler.LoadDocument(ctx, policyFileFlag)
	if err != nil {
		exitCode = 2
		return err
	}

	policy, err := compiler.Compile(raw)
	if err != nil {
		exitCode = 2
		return err
	}

	fmt.Printf("Policy: %s\n", policy.Name)
	fmt.Printf("Version: %s\n", policy.Version)
	fmt.Printf("Default action timeout: %s\n", policy.DefaultTimeout)
	fmt.Printf("Rules (%d, evaluation order):\n", len(policy.Rules))
	for i, r := range policy.Rules {
		fmt.Printf("  %2d. %s  %s %s", i+1, r.ID, r.Selector.Kind, r.Selector.Name)
		if len(r.DependsOn) > 0 {
			fmt.Printf("  (after %v)", r.DependsOn)
		}
		fmt.Println()
	}
	return nil
}

func runPolicySign(cmd *cobra.Command, args []string) error {
	sigPath, err := signing.SignPolicy(policyFileFlag, policyKeyFlag)
	if err != nil {
		return err
	}
	fmt.Printf("Signature written to %s\n", sigPath)
	return nil
}

func runPolicyVerify(cmd *cobra.Command, args []string) error {
	sigPath := policySigFlag
	if sigPath == "" {
		sigPath = policyFileFlag + signing.SignatureSuffix
	}

	valid, err := signing.VerifyPolicy(policyFileFlag, sigPath, policyKeyFlag)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("signature is INVALID for %s", policyFileFlag)
	}
	fmt.Printf("Signature is valid for %s\n", policyFileFlag)
	return nil
}
