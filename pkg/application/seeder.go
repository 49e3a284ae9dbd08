package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

func NewSeeder(logger *logrus.Logger) Seeder {
	return &seeder{logger: logger}
}

type seeder struct {
	logger *logrus.Logger
	steps  []SeedFunc
}

// Seed runs the registered steps in registration order and stops at the
// first failure.
func (s *seeder) Seed(ctx context.Context, app Application) error {
	for i, step := range s.steps {
		start := time.Now()
		if err := step(ctx, app); err != nil {
			return fmt.Errorf("seed step %d/%d: %w", i+1, len(s.steps), err)
		}
		s.logger.WithField("duration", time.Since(start)).Infof("seed step %d/%d done", i+1, len(s.steps))
	}
	return nil
}

func (s *seeder) Register(steps ...SeedFunc) {
	s.steps = append(s.steps, steps...)
}
