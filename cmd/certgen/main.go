// certgen generates the self-signed RSA certificate and key that tls3
// presents during the SSLv3 handshake with the game client.
//
// Some code borrowed from the go standard library:
// src/crypto/tls/generate_cert.go
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	certificateFilename = "certificate.pem"
	privateKeyFilename  = "key.pem"
)

func main() {
	app := &cli.App{
		Name:  "certgen",
		Usage: "generate the RSA certificate/key pair tls3 serves to clients",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "ip",
				Usage: "server's external_ip or comma-separated IPs",
			},
			&cli.StringFlag{
				Name:  "out",
				Value: ".",
				Usage: "directory to write certificate.pem/key.pem into",
			},
		},
		Action: generate,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func generate(c *cli.Context) error {
	ipFlag := c.String("ip")
	if ipFlag == "" {
		return cli.Exit("missing required flag: --ip", 1)
	}
	serverIPs := strings.Split(ipFlag, ",")

	template, err := createX509Template(serverIPs)
	if err != nil {
		return fmt.Errorf("error creating X.509 template: %w", err)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("error generating RSA key: %w", err)
	}

	outDir := c.String("out")
	if err := generateCertificateFile(outDir, template, privateKey); err != nil {
		return err
	}
	if err := generatePrivateKeyFile(outDir, privateKey); err != nil {
		return err
	}

	fmt.Printf(
		"\nDone! Pass --cert %s/%s and --key %s/%s to the pocketrelay server.\n",
		outDir, certificateFilename, outDir, privateKeyFilename,
	)
	return nil
}

func createX509Template(serverIPs []string) (*x509.Certificate, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, ip := range serverIPs {
		parsedIP := net.ParseIP(ip)
		if parsedIP == nil {
			return nil, fmt.Errorf("%v is not a valid IP address", ip)
		}
		ips = append(ips, parsedIP)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Pocket Relay"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour * 24 * 235 * 10),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           ips,
	}
	return template, nil
}

func generateCertificateFile(outDir string, template *x509.Certificate, privateKey *rsa.PrivateKey) error {
	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return err
	}

	path := outDir + "/" + certificateFilename
	certOut, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating certificate %s: %w", path, err)
	}
	defer certOut.Close()

	if err := pemEncode(certOut, "CERTIFICATE", certBytes); err != nil {
		return fmt.Errorf("error encoding certificate %s: %w", path, err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

func generatePrivateKeyFile(outDir string, privateKey *rsa.PrivateKey) error {
	path := outDir + "/" + privateKeyFilename
	keyOut, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		log.Printf("error creating key %s: %s\n", path, err)
		return err
	}
	defer keyOut.Close()

	keyBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	if err := pemEncode(keyOut, "RSA PRIVATE KEY", keyBytes); err != nil {
		return fmt.Errorf("error encoding key %s: %w", path, err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

func pemEncode(w io.Writer, blockType string, bytes []byte) error {
	return pem.Encode(w, &pem.Block{Type: blockType, Bytes: bytes})
}
