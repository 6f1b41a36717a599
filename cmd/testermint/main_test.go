package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gradosphera/gonka/gov"
	"github.com/gradosphera/gonka/upgrade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtifacts(t *testing.T) {
	artifacts, err := parseArtifacts([]string{
		"bin/inferenced",
		"linux/arm64=bin/inferenced-arm#abcd",
	})
	require.NoError(t, err)
	assert.Equal(t, []upgrade.Artifact{
		{Path: "bin/inferenced", Platform: upgrade.DefaultPlatform},
		{Path: "bin/inferenced-arm", Platform: "linux/arm64", Checksum: "abcd"},
	}, artifacts)

	artifacts, err = parseArtifacts([]string{"linux/arm64=https://example.com/dl/inferenced.zip#ff"})
	require.NoError(t, err)
	assert.Equal(t, []upgrade.Artifact{
		{URL: "https://example.com/dl/inferenced.zip", Platform: "linux/arm64", Checksum: "ff"},
	}, artifacts)

	_, err = parseArtifacts([]string{"linux/amd64="})
	assert.Error(t, err)
	_, err = parseArtifacts([]string{"=bin/x"})
	assert.Error(t, err)
}

func TestReleaseArtifacts(t *testing.T) {
	node, api, err := releaseArtifacts("product-science/race-releases@release/v0.1.2")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/product-science/race-releases/releases/download/release/v0.1.2/inferenced-amd64.zip", node.URL)
	assert.Equal(t, "https://github.com/product-science/race-releases/releases/download/release/v0.1.2/decentralized-api-amd64.zip", api.URL)
	assert.Empty(t, node.Path)

	_, _, err = releaseArtifacts("v0.1.2")
	assert.Error(t, err)
	_, _, err = releaseArtifacts("repo@v0.1.2")
	assert.Error(t, err)
}

func TestReportView(t *testing.T) {
	info := reportView(&upgrade.Report{
		Name:             "v2.0.0",
		ProposalID:       3,
		ActivationHeight: 60,
		Outcome:          &gov.Outcome{ProposalID: 3, State: gov.StateEffective, Height: 61},
		Artifacts: []*upgrade.StagedArtifact{
			{Artifact: upgrade.Artifact{Path: "bin/inferenced"}, URL: "http://localhost/files/x"},
		},
		Nodes: map[string]*upgrade.NodeReport{
			"genesis": {Node: "genesis", Height: 62, Version: "v2.0.0", Converged: true},
			"join1":   {Node: "join1", Height: 59, Err: errors.New("timeout")},
		},
	})
	assert.Equal(t, "effective", info.Outcome.State)
	assert.Equal(t, "http://localhost/files/x", info.Artifacts["bin/inferenced"])
	assert.True(t, info.Nodes["genesis"].Converged)
	assert.Equal(t, "timeout", info.Nodes["join1"].Err)
}

func TestVersionWithCommit(t *testing.T) {
	assert.Equal(t, Version, VersionWithCommit("abc"))
	assert.Equal(t, Version+"-0123abcd", VersionWithCommit("0123abcdef"))

	GitCommit = "fedcba9876543210"
	defer func() { GitCommit = "" }()
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	require.NoError(t, versionRun(versionCmd, nil))
	assert.Equal(t, Version+"-fedcba98\n", out.String())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range allowListCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"show", "add", "remove", "set", "verify"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, upgradeCmd.Flags().Lookup("api-binary"))
	assert.NotNil(t, partialUpgradeCmd.Flags().Lookup("node-version"))
}
