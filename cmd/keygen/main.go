// Command keygen generates the RSA key pair the API uses to sign and verify
// access tokens. The gob-encoded files are what the server loads at startup;
// the PEM copy is kept for external tooling.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/gob"
	"encoding/pem"
	"flag"
	"log"
	"os"
	"path/filepath"
)

var dir = flag.String("dir", "", "Directory where the generated keys will be written")

func writeGob(filename string, key interface{}) {
	file, err := os.Create(filename)
	if err != nil {
		log.Fatalln(err)
	}
	if err = gob.NewEncoder(file).Encode(key); err != nil {
		log.Fatalln(err)
	}
	if err = file.Close(); err != nil {
		log.Fatalln(err)
	}
}

func main() {
	flag.Parse()
	if *dir == "" {
		log.Fatal("a target directory is required")
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatalln(err)
	}

	writeGob(filepath.Join(*dir, "private.key"), privateKey)
	writeGob(filepath.Join(*dir, "public.key"), &privateKey.PublicKey)

	pemFile, err := os.Create(filepath.Join(*dir, "private.pem"))
	if err != nil {
		log.Fatalln(err)
	}
	pemBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}
	if err = pem.Encode(pemFile, pemBlock); err != nil {
		log.Fatalln(err)
	}
	if err = pemFile.Close(); err != nil {
		log.Fatalln(err)
	}
}
