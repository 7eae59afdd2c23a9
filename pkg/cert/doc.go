// Package cert loads the credentials an EPP client presents to a registry.
//
// Registries usually require a client certificate on the stream mapping and
// either hand it out as PEM files or as a PKCS#12 bundle. Both end up as a
// tls.Certificate for transport.SecurityOptions:
//
//	pair, err := cert.LoadKeyPair("client.crt", "client.key")
//	pair, err := cert.LoadPKCS12("client.p12", "secret")
//	roots, err := cert.ReadCertPool("registry-ca.pem")
//
// GenerateSelfSigned creates throwaway credentials for stub registries.
package cert
