package config

import (
	"fmt"
	"time"
)

const (
	LearningSlow   = "slow"
	LearningNormal = "normal"
	LearningFast   = "fast"
)

// LearningProfile is what a learning rate translates to
type LearningProfile struct {
	Retention  time.Duration
	MaxPerUser int
	// InteractionWeight is how strongly recorded interactions bias predictions
	InteractionWeight float64
}

var learningProfiles = map[string]LearningProfile{
	LearningSlow:   {Retention: 90 * 24 * time.Hour, MaxPerUser: 500, InteractionWeight: 0.1},
	LearningNormal: {Retention: 30 * 24 * time.Hour, MaxPerUser: 200, InteractionWeight: 0.3},
	LearningFast:   {Retention: 7 * 24 * time.Hour, MaxPerUser: 50, InteractionWeight: 0.6},
}

// ProfileFor returns the profile of a learning rate
func ProfileFor(rate string) (LearningProfile, error) {
	p, ok := learningProfiles[rate]
	if !ok {
		return LearningProfile{}, fmt.Errorf("learning rate must be one of slow, normal, fast: got %q", rate)
	}
	return p, nil
}

// LearningProfile resolves the active profile with explicit interaction overrides applied
func (c *AppConfig) LearningProfile() LearningProfile {
	p, err := ProfileFor(c.Learning.Rate)
	if err != nil {
		p = learningProfiles[LearningNormal]
	}
	if c.Interactions.Retention > 0 {
		p.Retention = c.Interactions.Retention
	}
	if c.Interactions.MaxPerUser > 0 {
		p.MaxPerUser = c.Interactions.MaxPerUser
	}
	return p
}
