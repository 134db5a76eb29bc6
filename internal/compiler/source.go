package compiler

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
)

// OCIPolicyFile is the entry looked up inside a policy artifact
const OCIPolicyFile = "policy.yaml"

// maxPolicySize bounds how much of a policy artifact is read
const maxPolicySize = 4 << 20

// LoadDocument reads a raw policy document from a local path or, for
// sources of the form oci://<ref>, from an OCI registry artifact
// containing a policy.yaml layer entry.
func LoadDocument(ctx context.Context, source string) ([]byte, error) {
	if ref, ok := strings.CutPrefix(source, "oci://"); ok {
		return loadOCIDocument(ctx, ref)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return data, nil
}

// loadOCIDocument pulls the artifact and extracts policy.yaml from the
// flattened filesystem
func loadOCIDocument(ctx context.Context, ref string) ([]byte, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy reference: %w", err)
	}

	img, err := crane.Pull(parsed.String(), crane.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to pull policy artifact %s: %w", ref, err)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(crane.Export(img, pw))
	}()
	defer pr.Close()

	tr := tar.NewReader(pr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read policy artifact layers: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if path.Base(hdr.Name) != OCIPolicyFile {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxPolicySize))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from artifact: %w", OCIPolicyFile, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("policy artifact %s contains no %s", ref, OCIPolicyFile)
}
