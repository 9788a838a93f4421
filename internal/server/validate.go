package server

import (
	"fmt"

	"github.com/cloudtriage/cloudtriage/internal/config"
	"github.com/cloudtriage/cloudtriage/internal/session"
)

// validateNewSession checks the payload limits on a session-creating
// request before anything is stored.
func validateNewSession(errorDescription string, ctx session.Context, limits config.InputConfig) error {
	if errorDescription == "" {
		return fmt.Errorf("error_description is required when no trace_id is given")
	}
	if len(errorDescription) > limits.MaxErrorBytes {
		return fmt.Errorf("error_description exceeds %d bytes", limits.MaxErrorBytes)
	}
	return validateEvidence(ctx.EvidenceItems, limits)
}

// validateEvidence bounds evidence payloads for both fresh and
// continuation requests.
func validateEvidence(items []session.EvidenceItem, limits config.InputConfig) error {
	if len(items) > limits.MaxEvidenceFiles {
		return fmt.Errorf("too many evidence items: %d exceeds the limit of %d", len(items), limits.MaxEvidenceFiles)
	}
	total := 0
	for _, item := range items {
		if item.Path == "" {
			return fmt.Errorf("evidence item missing a path")
		}
		total += len(item.Content)
	}
	if total > limits.MaxEvidenceBytes {
		return fmt.Errorf("evidence payload exceeds %d bytes", limits.MaxEvidenceBytes)
	}
	return nil
}
