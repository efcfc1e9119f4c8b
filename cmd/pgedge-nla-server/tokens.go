/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"pgedge-nla/internal/auth"
)

// defaultTokenPath returns the token file next to the binary
func defaultTokenPath(execPath string) string {
	return filepath.Join(filepath.Dir(execPath), "pgedge-nla-tokens.yaml")
}

// addTokenCommand handles the -add-token command
func addTokenCommand(tokenFile, annotation, expiry string) error {
	store := auth.NewTokenStore(nil)
	if _, err := os.Stat(tokenFile); err == nil {
		loaded, err := auth.LoadTokenStore(tokenFile)
		if err != nil {
			return fmt.Errorf("failed to load token file: %w", err)
		}
		store = loaded
	} else {
		fmt.Fprintf(os.Stderr, "Creating new token file: %s\n", tokenFile)
	}

	var expiresAt *time.Time
	if expiry != "" && expiry != "never" {
		d, err := parseDuration(expiry)
		if err != nil {
			return fmt.Errorf("invalid expiry duration: %w", err)
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	token, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}

	tokenID := fmt.Sprintf("token-%d", time.Now().Unix())
	if err := store.AddToken(tokenID, hash, annotation, expiresAt); err != nil {
		return fmt.Errorf("failed to add token: %w", err)
	}
	if err := auth.SaveTokenStore(tokenFile, store); err != nil {
		return fmt.Errorf("failed to save token file: %w", err)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("Token created successfully!")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\nToken: %s\n", token)
	fmt.Printf("ID:    %s\n", tokenID)
	if annotation != "" {
		fmt.Printf("Note:  %s\n", annotation)
	}
	if expiresAt != nil {
		fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC3339))
	} else {
		fmt.Println("Expires: Never")
	}
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("\nIMPORTANT: Save this token securely - it will not be shown again!")
	fmt.Println("Use it in API requests with: Authorization: Bearer <token>")
	fmt.Println(strings.Repeat("=", 70) + "\n")

	return nil
}

// removeTokenCommand handles the -remove-token command
func removeTokenCommand(tokenFile, tokenID string) error {
	store, err := auth.LoadTokenStore(tokenFile)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}

	if !store.RemoveToken(tokenID) {
		return fmt.Errorf("token not found: %s", tokenID)
	}

	if err := auth.SaveTokenStore(tokenFile, store); err != nil {
		return fmt.Errorf("failed to save token file: %w", err)
	}

	fmt.Printf("Token removed successfully: %s\n", tokenID)
	return nil
}

// listTokensCommand handles the -list-tokens command
func listTokensCommand(tokenFile string) error {
	store, err := auth.LoadTokenStore(tokenFile)
	if err != nil {
		return fmt.Errorf("failed to load token file: %w", err)
	}

	tokens := store.ListTokens()
	if len(tokens) == 0 {
		fmt.Println("No tokens found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Created", "Expires", "Status", "Annotation"})
	for _, token := range tokens {
		status := "Active"
		if token.Expired {
			status = "EXPIRED"
		}
		expires := "Never"
		if token.ExpiresAt != nil {
			expires = token.ExpiresAt.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{token.ID, token.CreatedAt.Format("2006-01-02 15:04"), expires, status, token.Annotation})
	}
	t.Render()

	return nil
}

// parseDuration parses durations like "30d", "1y", "2w", "12h"
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration format")
	}

	numStr := s[:len(s)-1]
	unit := s[len(s)-1]

	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return 0, fmt.Errorf("invalid number in duration: %w", err)
	}
	if num <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}

	switch unit {
	case 'h':
		return time.Duration(num) * time.Hour, nil
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(num) * 30 * 24 * time.Hour, nil
	case 'y':
		return time.Duration(num) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit: %c (use h, d, w, m, or y)", unit)
	}
}
