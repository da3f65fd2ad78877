package dm

import "context"

// setSecurity accepts SET on Device.X_OptimACS_Security.* as a no-op: the
// value is discarded and nothing is written.
func (d *Dispatcher) setSecurity(ctx context.Context, path, value string) error {
	return nil
}

// operateIssueCert returns the initial provisioning certificate (InitCert)
// as proof of identity for an IssueCert() exchange. It does not generate a
// fresh CSR — it reports the PEM already on disk under the "csr" key.
func (d *Dispatcher) operateIssueCert(ctx context.Context, command string, _ map[string]string) (map[string]string, error) {
	certPEM, err := d.Cert.ReadCert(ctx, d.InitCert)
	if err != nil {
		return nil, err
	}
	return map[string]string{"csr": certPEM}, nil
}
