// SPDX-License-Identifier: MIT
//
// Package build carries the metadata linked into the binary with -ldflags:
//
//	go build -ldflags "-X musualiser/pkg/build.buildName=musualiser \
//	  -X musualiser/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds leave the variables empty and report "unknown".
package build

import (
	"errors"
	"fmt"
)

const (
	defaultName        = "musualiser"
	defaultDescription = "Real-time mel spectrum visualiser for live capture and audio files"
	unknown            = "unknown"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}
)

// Initialize copies the linked values into the build flags. It reports every
// missing value together; the flags keep their defaults when it fails, so a
// development build can log the error and carry on.
func Initialize() error {
	var errs []error
	if buildName == "" {
		errs = append(errs, errors.New("BuildName is required"))
	}
	if buildTime == "" {
		errs = append(errs, errors.New("BuildTime is required"))
	}
	if buildCommit == "" {
		errs = append(errs, errors.New("BuildCommit is required"))
	}
	if buildVersion == "" {
		errs = append(errs, errors.New("BuildVersion is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// Summary is the one-line version string shown by --version.
func (f *ldFlags) Summary() string {
	return fmt.Sprintf("%s (commit %s, built %s)", f.Version, f.Commit, f.Time)
}
