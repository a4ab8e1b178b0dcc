package yamlrules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/news-curator/internal/core/domain"
)

// Source loads editorial policy rules from a YAML file. A missing file is
// not an error: the built-in defaults apply so the values-fit stage always
// has criteria to judge against.
type Source struct {
	path   string
	logger *slog.Logger
}

func New(path string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{path: path, logger: logger}
}

type rulesFile struct {
	MustHave  []string `yaml:"must_have"`
	MustAvoid []string `yaml:"must_avoid"`
}

func (s *Source) Load(_ context.Context) (domain.PolicyRules, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("policy rules file absent, using defaults", "path", s.path)
			return domain.DefaultPolicyRules(), nil
		}
		return domain.PolicyRules{}, fmt.Errorf("read rules file: %w", err)
	}

	var parsed rulesFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return domain.PolicyRules{}, fmt.Errorf("parse rules file: %w", err)
	}

	rules := domain.PolicyRules{MustHave: parsed.MustHave, MustAvoid: parsed.MustAvoid}
	if rules.Empty() {
		s.logger.Warn("policy rules file defines no rules, using defaults", "path", s.path)
		return domain.DefaultPolicyRules(), nil
	}
	return rules, nil
}
