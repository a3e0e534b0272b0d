// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "fmt"

// UnknownBuildValue stands in for build metadata the linker did not set.
const UnknownBuildValue = "N/A"

// AppBuildInfo is the version, date and commit stamped into the agent
// binary. It is printed on start and served by GET /api/version.
type AppBuildInfo struct {
	buildVersion string
	buildDate    string
	buildCommit  string
}

// NewAppBuildInfo returns build info with blank values replaced by
// UnknownBuildValue.
func NewAppBuildInfo(buildVersion, buildDate, buildCommit string) AppBuildInfo {
	return AppBuildInfo{
		buildVersion: orUnknown(buildVersion),
		buildDate:    orUnknown(buildDate),
		buildCommit:  orUnknown(buildCommit),
	}
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownBuildValue
	}
	return v
}

func (a AppBuildInfo) BuildVersion() string { return a.buildVersion }
func (a AppBuildInfo) BuildDate() string    { return a.buildDate }
func (a AppBuildInfo) BuildCommit() string  { return a.buildCommit }

// WithFallbackVersion fills in version when the linker left it unknown.
// A stamped version always wins.
func (a AppBuildInfo) WithFallbackVersion(version string) AppBuildInfo {
	if a.buildVersion == UnknownBuildValue && version != "" {
		a.buildVersion = version
	}
	return a
}

func (a AppBuildInfo) String() string {
	return fmt.Sprintf("version %s (commit %s, built %s)", a.buildVersion, a.buildCommit, a.buildDate)
}
