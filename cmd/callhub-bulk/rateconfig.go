package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dialops/callhub-client/pkg/ratelimit"
)

// rateConfigFile is the YAML shape of a rate limit override file:
//
//	rate_limits:
//	  general:
//	    calls: 13
//	    period: 1s
//	  bulk_create:
//	    cooldown: true
//	    period: 70s
type rateConfigFile struct {
	RateLimits map[string]rateConfigEntry `yaml:"rate_limits"`
}

type rateConfigEntry struct {
	Calls    int    `yaml:"calls"`
	Period   string `yaml:"period"`
	Cooldown bool   `yaml:"cooldown"`
	Disabled bool   `yaml:"disabled"`
}

// loadRateConfig reads rate limit policies from a YAML file. Classes not
// listed keep the client defaults.
func loadRateConfig(path string) (map[ratelimit.Class]ratelimit.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file rateConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	policies := make(map[ratelimit.Class]ratelimit.Policy, len(file.RateLimits))
	for name, entry := range file.RateLimits {
		policy, err := entry.policy()
		if err != nil {
			return nil, fmt.Errorf("rate limit %q: %w", name, err)
		}
		policies[ratelimit.Class(name)] = policy
	}
	return policies, nil
}

func (e rateConfigEntry) policy() (ratelimit.Policy, error) {
	if e.Disabled {
		return ratelimit.Unlimited(), nil
	}

	period, err := time.ParseDuration(e.Period)
	if err != nil {
		return ratelimit.Policy{}, fmt.Errorf("parse period %q: %w", e.Period, err)
	}

	var policy ratelimit.Policy
	if e.Cooldown {
		policy = ratelimit.Cooldown(period)
	} else {
		policy = ratelimit.Window(e.Calls, period)
	}
	if err := policy.Validate(); err != nil {
		return ratelimit.Policy{}, err
	}
	return policy, nil
}
