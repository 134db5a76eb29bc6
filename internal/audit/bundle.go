package audit

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/driftd/driftd/internal/version"
)

// BundleOptions names the inputs of an evidence bundle
type BundleOptions struct {
	AuditLogPath  string
	PolicyPath    string
	SignaturePath string // optional detached policy signature
	OutputPath    string
}

// BundleManifest describes bundle contents for auditors
type BundleManifest struct {
	ToolVersion string         `json:"tool_version"`
	CreatedAt   string         `json:"created_at"`
	Files       []ManifestFile `json:"files"`
}

// ManifestFile desc
type ManifestFile struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// bundle entry names, stable regardless of source paths
const (
	bundleAuditName     = "audit.log"
	bundlePolicyName    = "policy.yaml"
	bundleSignatureName = "policy.yaml.sig"
	bundleManifestName  = "manifest.json"
)

// CreateBundle writes a zip evidence bundle: the audit log, the policy it
// was produced under, the optional policy signature, and a manifest with
// sha256 digests of each file.
func CreateBundle(opts BundleOptions) error {
	entries := []struct{ src, name string }{
		{opts.AuditLogPath, bundleAuditName},
		{opts.PolicyPath, bundlePolicyName},
	}
	if opts.SignaturePath != "" {
		entries = append(entries, struct{ src, name string }{opts.SignaturePath, bundleSignatureName})
	}

	manifest := &BundleManifest{
		ToolVersion: version.BuildVersion(),
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, e := range entries {
		hash, size, err := hashFile(e.src)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", e.src, err)
		}
		manifest.Files = append(manifest.Files, ManifestFile{Name: e.name, SHA256: hash, Size: size})
	}
	sort.Slice(manifest.Files, func(i, j int) bool {
		return manifest.Files[i].Name < manifest.Files[j].Name
	})

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	w, err := zw.Create(bundleManifestName)
	if err != nil {
		return fmt.Errorf("failed to add manifest: %w", err)
	}
	if _, err := w.Write(manifestJSON); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	for _, e := range entries {
		if err := addFileToZip(zw, e.src, e.name); err != nil {
			return fmt.Errorf("failed to add %s: %w", e.name, err)
		}
	}

	return nil
}

func addFileToZip(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func hashFile(path string) (string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), int64(len(data)), nil
}
