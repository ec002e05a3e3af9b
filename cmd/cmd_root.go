// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "vereinsmatrix",
	Short: "Entfernungs- und Fahrzeitmatrix zwischen Vereinen",
	Long: `
vereinsmatrix berechnet aus einer Vereinsliste (xlsx) die vollständige
Entfernungs- und Fahrzeitmatrix über die Google-Dienste. Geocodierte
Adressen werden lokal zwischengespeichert, damit Folgeläufe keine
unnötigen Anfragen stellen.
`,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
