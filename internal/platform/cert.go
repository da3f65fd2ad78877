package platform

import (
	"context"
	"os"
)

// CertFileReader implements dm.CertReader by reading a PEM file from disk.
type CertFileReader struct{}

func NewCertFileReader() CertFileReader { return CertFileReader{} }

func (CertFileReader) ReadCert(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
