// Package main provides cannyctl, an operator CLI for Canny Carrot records.
package main

import (
	"fmt"
	"os"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/config"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore/backend"
)

func main() {
	root := newRootCmd(openFromConfig)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openFromConfig opens the store named by the console configuration.
func openFromConfig() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	b, err := backend.Open(cfg.Store, nil)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, backend: b}, nil
}
