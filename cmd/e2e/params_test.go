package main

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpharness/internal/config"
	"cdpharness/internal/suite"
)

func TestReadParams(t *testing.T) {
	var p commandParams
	ok := p.Read([]string{"e2e", "-base-url", "http://app:3000", "-run", "homepage", "-skip", "api validation",
		"-capability", "error-display", "-debug"})
	require.True(t, ok)
	assert.Equal(t, "http://app:3000", p.baseURL)
	assert.Equal(t, []string{"homepage"}, p.filters.MustMatch.Values())
	assert.Equal(t, []string{"api validation"}, p.filters.MustNotMatch.Values())
	assert.Equal(t, stringList{"error-display"}, p.capabilities)
	assert.True(t, p.debug)
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Test.Skip = []string{"user journey"}
	p := commandParams{devtoolsURL: "http://chrome:9222", baseURL: "http://app:3000", journal: true, capabilities: stringList{"error-display"}}

	applyOverrides(cfg, &p)
	assert.Equal(t, "http://chrome:9222", cfg.Browser.DevToolsURL)
	assert.Equal(t, "http://app:3000", cfg.App.BaseURL)
	assert.True(t, cfg.Sqlite.Enabled)
	assert.True(t, cfg.HasCapability("error-display"))
	assert.False(t, p.filters.AsFilter(suite.TestID{Path: []string{"user journey"}}))
}

func TestRerunCommandSelectsFailures(t *testing.T) {
	p := commandParams{baseURL: "http://app:3000"}
	results := suite.Results{Failures: []suite.TestResult{
		{TestID: suite.TestID{Path: []string{"api mocking", "slow response"}}, Errors: []error{errors.New("x")}},
	}}

	cmd := p.rerunCommand(results)
	assert.Equal(t, os.Args[0]+` -base-url http://app:3000 -run '^api mocking$/^slow response$' -debug`, cmd)

	var rerun commandParams
	require.True(t, rerun.Read([]string{"e2e", "-run", "^api mocking$/^slow response$"}))
	assert.True(t, rerun.filters.AsFilter(suite.TestID{Path: []string{"api mocking", "slow response"}}))
	assert.False(t, rerun.filters.AsFilter(suite.TestID{Path: []string{"api mocking", "slow response 2"}}))
}
