package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	pipelineUseCase "github.com/roofline/crmcore/internal/pipeline/usecase"
)

// RunSeedRules installs transition rules for a tenant. Rules come from the YAML file
// at path, or the built-in roofing defaults when path is empty. Status pairs the
// tenant already configured are left untouched.
func RunSeedRules(
	ctx context.Context,
	ruleUseCase pipelineUseCase.RuleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	tenantIDStr string,
	path string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil {
		return fmt.Errorf("invalid tenant ID format: %w", err)
	}

	source := "defaults"
	rules := pipelineDomain.DefaultRules()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read rule file: %w", err)
		}
		if rules, err = pipelineDomain.ParseRuleFile(data); err != nil {
			return fmt.Errorf("failed to parse rule file: %w", err)
		}
		source = path
	}

	logger.Info("seeding transition rules",
		slog.String("tenant_id", tenantID.String()),
		slog.String("source", source),
		slog.Int("rules", len(rules)),
	)

	created, err := ruleUseCase.SeedRules(ctx, tenantID, rules)
	if err != nil {
		return fmt.Errorf("failed to seed rules: %w", err)
	}

	skipped := len(rules) - created
	if format == "json" {
		return writeJSON(writer, map[string]any{
			"tenant_id": tenantID.String(),
			"source":    source,
			"created":   created,
			"skipped":   skipped,
		})
	}

	_, err = fmt.Fprintf(writer, "Seeded %d transition rule(s) for tenant %s from %s (%d already present)\n",
		created, tenantID, source, skipped)
	return err
}
