// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Hash a password with the configured hasher",
		Long: `Read a password from stdin and print its hash. Useful for preparing
credentials out of band. The password is read from stdin so it never
appears in shell history or process listings.`,
		RunE: runHash,
	}
}

func runHash(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	hasher, err := buildHasher(cfg)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return oops.Code("HASH_INPUT_FAILED").With("operation", "read password from stdin").Wrap(err)
	}
	password := strings.TrimRight(line, "\r\n")

	hashed, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	cmd.Println(hashed)
	return nil
}
