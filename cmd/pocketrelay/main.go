// The pocketrelay command is the main entrypoint for running the server.
// It initializes the shared config/database/TLS resources and starts every
// server component (redirector, session, tunnel, HTTP status) under one
// cancelable context.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dcrodman/pocketrelay/internal"
	"github.com/dcrodman/pocketrelay/internal/core"
)

var (
	configFlag = flag.String("config", "./", "Path to the directory containing the server config file")
	certFlag   = flag.String("cert", "certificate.pem", "Path to the PEM-encoded tls3 certificate")
	keyFlag    = flag.String("key", "key.pem", "Path to the PEM-encoded tls3 private key")
)

func main() {
	flag.Parse()

	fmt.Println("Pocket Relay\n" +
		"============\n" +
		"An unofficial private server for Mass Effect 3.")

	config := core.LoadConfig(*configFlag)
	fmt.Println("using configuration file:", *configFlag)

	// Change to the same directory as the config file so that any relative
	// paths in the config file (database file, cert/key) resolve.
	if err := os.Chdir(*configFlag); err != nil {
		fmt.Println("error changing to config directory:", err)
		os.Exit(1)
	}

	// Bind the Controller to one top-level server context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())

	// Register a SIGTERM handler so that Ctrl-C will shut the servers down gracefully.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	var wg sync.WaitGroup
	wg.Add(1)
	go exitHandler(cancel, sigCh, &wg)

	controller := &internal.Controller{
		Config:   config,
		CertPath: *certFlag,
		KeyPath:  *keyFlag,
	}
	err := controller.Start(ctx)
	wg.Done()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Println(err)
			os.Exit(1)
		}
	}
	fmt.Println("shut down")
}

func exitHandler(cancelFn func(), c chan os.Signal, wg ...*sync.WaitGroup) {
	<-c
	fmt.Println("waiting to shut down gracefully...")

	cancelFn()
	exitChan := make(chan bool)
	go func() {
		for _, wg := range wg {
			wg.Wait()
		}
		exitChan <- true
	}()

	select {
	case <-c:
		fmt.Println("hard exiting (killed)")
	case <-exitChan:
	}

	os.Exit(0)
}
