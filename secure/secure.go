// Package secure loads TLS material from disk and turns it into channel
// credentials for the benchmark clients.
package secure

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	errBadServerCert = errors.New("server certificate is not valid PEM")
	errKeyPairSplit  = errors.New("client key and client CA chain must be supplied together")
)

// Certificates holds the raw TLS material for a secure channel. Each slot is
// independently present or absent; a nil slot means the corresponding path
// was not supplied, which is a valid plaintext or partial-mTLS setup.
type Certificates struct {
	ServerCert []byte
	ClientKey  []byte
	ClientCA   []byte
}

// LoadCertificates reads each supplied path into its slot. An empty path
// yields a nil slot without touching the filesystem. A path that cannot be
// read is an error naming the slot; it is never downgraded to absence.
func LoadCertificates(serverCertPath, clientKeyPath, clientCAPath string) (*Certificates, error) {
	certs := &Certificates{}

	var err error
	if serverCertPath != "" {
		if certs.ServerCert, err = os.ReadFile(serverCertPath); err != nil {
			return nil, fmt.Errorf("reading server certificate: %w", err)
		}
	}
	if clientKeyPath != "" {
		if certs.ClientKey, err = os.ReadFile(clientKeyPath); err != nil {
			return nil, fmt.Errorf("reading client key: %w", err)
		}
	}
	if clientCAPath != "" {
		if certs.ClientCA, err = os.ReadFile(clientCAPath); err != nil {
			return nil, fmt.Errorf("reading client CA chain: %w", err)
		}
	}

	return certs, nil
}

// Empty reports whether no TLS material was loaded at all.
func (c *Certificates) Empty() bool {
	return len(c.ServerCert) == 0 && len(c.ClientKey) == 0 && len(c.ClientCA) == 0
}

// TLSConfig builds a client tls.Config from the loaded material. The server
// certificate is trusted as the root of the server chain; when both the
// client key and the client CA chain are present they form the client
// keypair for mutual TLS.
func (c *Certificates) TLSConfig(serverName string) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	if len(c.ServerCert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(c.ServerCert) {
			return nil, errBadServerCert
		}
		cfg.RootCAs = pool
	}

	if (len(c.ClientKey) > 0) != (len(c.ClientCA) > 0) {
		return nil, errKeyPairSplit
	}
	if len(c.ClientKey) > 0 {
		keypair, err := tls.X509KeyPair(c.ClientCA, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("building client keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{keypair}
	}

	return cfg, nil
}

// TransportCredentials wraps the material in gRPC transport credentials.
// With no material at all the channel is plaintext.
func (c *Certificates) TransportCredentials(serverName string) (credentials.TransportCredentials, error) {
	if c.Empty() {
		return insecure.NewCredentials(), nil
	}

	cfg, err := c.TLSConfig(serverName)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(cfg), nil
}
