package platform

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// nameMismatchVerifier checks a server certificate chain against a root pool
// so that the chain is fully validated (signature, expiry, key usage) but hostname/SAN matching
// is skipped, matching an OpenSSL client configured with SSL_VERIFY_PEER
// and no SSL_set1_host call.
type nameMismatchVerifier struct {
	roots *x509.CertPool
}

func (v nameMismatchVerifier) verify(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("tls: no certificate presented")
	}
	leaf, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return err
	}
	intermediates := x509.NewCertPool()
	for _, raw := range rawCerts[1:] {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return err
		}
		intermediates.AddCert(cert)
	}
	_, err = leaf.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	return err
}

// NewClientTLSConfig builds a mutual-TLS 1.3 config for the Agent's outbound
// MTP connections: client presents certFile/keyFile, the server chain is
// validated against caFile, but hostname/SAN verification is suppressed so
// the Controller's certificate need not carry the connection address as a SAN.
// serverName is sent as the SNI ServerName and is independent of the
// dial address, since the Controller is frequently reached through a load
// balancer or relay that doesn't share the certificate's CN.
func NewClientTLSConfig(caFile, certFile, keyFile, serverName string) (*tls.Config, error) {
	caPEM, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("tls: read ca file: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("tls: no certificates found in %s", caFile)
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tls: load client keypair: %w", err)
	}

	verifier := nameMismatchVerifier{roots: roots}

	return &tls.Config{
		MinVersion:            tls.VersionTLS13,
		MaxVersion:            tls.VersionTLS13,
		ServerName:            serverName,
		Certificates:          []tls.Certificate{cert},
		InsecureSkipVerify:    true, // chain validation is done in VerifyPeerCertificate below
		VerifyPeerCertificate: verifier.verify,
		CurvePreferences:      []tls.CurveID{tls.X25519MLKEM768, tls.X25519},
	}, nil
}
