package signing

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// SignatureSuffix for detached policy signatures
const SignatureSuffix = ".sig"

// SignPolicy signs the raw policy document bytes and writes the detached
// signature (base64) next to the policy file. Returns the signature path.
func SignPolicy(policyPath, privateKeyPath string) (string, error) {
	data, err := os.ReadFile(policyPath)
	if err != nil {
		return "", fmt.Errorf("failed to read policy: %w", err)
	}

	sig, err := Sign(data, privateKeyPath)
	if err != nil {
		return "", err
	}

	sigPath := policyPath + SignatureSuffix
	encoded := base64.StdEncoding.EncodeToString(sig) + "\n"
	if err := os.WriteFile(sigPath, []byte(encoded), 0644); err != nil {
		return "", fmt.Errorf("failed to write signature: %w", err)
	}
	return sigPath, nil
}

// VerifyPolicy checks a detached signature against the policy document
func VerifyPolicy(policyPath, sigPath, publicKeyPath string) (bool, error) {
	data, err := os.ReadFile(policyPath)
	if err != nil {
		return false, fmt.Errorf("failed to read policy: %w", err)
	}

	encoded, err := os.ReadFile(sigPath)
	if err != nil {
		return false, fmt.Errorf("failed to read signature: %w", err)
	}

	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}

	return Verify(data, sig, publicKeyPath)
}

// VerifyPolicyBytes checks a detached signature file against in-memory
// policy bytes, for sources that are not local files (oci://).
func VerifyPolicyBytes(data []byte, sigPath, publicKeyPath string) (bool, error) {
	encoded, err := os.ReadFile(sigPath)
	if err != nil {
		return false, fmt.Errorf("failed to read signature: %w", err)
	}

	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}

	return Verify(data, sig, publicKeyPath)
}
