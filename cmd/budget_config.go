package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/pmu-cosim/pmu-cosim/cosim"
)

// BudgetsConfig is the YAML schema for named fairness budget presets,
// e.g. one preset per estimator class (P-class vs M-class deadlines).
type BudgetsConfig struct {
	Budgets map[string]cosim.FairnessBudget `yaml:"budgets"`
}

// GetFairnessBudget loads the named preset from a budgets YAML file.
// Returns nil when the preset does not exist.
func GetFairnessBudget(budgetsFilePath string, name string) *cosim.FairnessBudget {
	data, err := os.ReadFile(budgetsFilePath)
	if err != nil {
		logrus.Fatalf("Unable to read budgets file %s: %v", budgetsFilePath, err)
	}

	var cfg BudgetsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Fatalf("Unable to parse budgets file %s: %v", budgetsFilePath, err)
	}

	if budget, ok := cfg.Budgets[name]; ok {
		logrus.Infof("Using fairness budget preset %q", name)
		return &budget
	}
	return nil
}
