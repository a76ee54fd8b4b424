//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package main is the entry point for pgedge-retailstar.
package main

import (
	"fmt"
	"os"

	"github.com/pgEdge/pgedge-retailstar/internal/cli"

	// Register sinks
	_ "github.com/pgEdge/pgedge-retailstar/internal/sink/memory"
	_ "github.com/pgEdge/pgedge-retailstar/internal/sink/mssql"
	_ "github.com/pgEdge/pgedge-retailstar/internal/sink/postgres"
	_ "github.com/pgEdge/pgedge-retailstar/internal/sink/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
