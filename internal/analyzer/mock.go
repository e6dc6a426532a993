package analyzer

import (
	"context"
	"encoding/json"

	"github.com/redeyefit/fieldvision/internal/models"
	"github.com/redeyefit/fieldvision/internal/storage"
)

// MockTagger returns fixed tags without calling a model. It is used for
// dry runs and tests.
type MockTagger struct{}

func (MockTagger) Describe(ctx context.Context, item models.WorkItem) (string, error) {
	tags, err := json.Marshal(map[string]string{
		"file":       storage.FrameName(item.Frame),
		"trade":      "mock-trade",
		"completion": "0%",
		"notes":      "simulated",
	})
	if err != nil {
		return "", err
	}
	return string(tags), nil
}
