//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/mkfoss/btrcall/internal/styles"
)

// cgoTag selects the native engine backend.
const cgoTag = "btrcallcgo"

// Info displays the available mage commands and their descriptions
func Info() {
	fmt.Println(styles.Header("Mage build script for btrcall"))
	fmt.Println()
	fmt.Println(styles.Info("Available commands:"))
	fmt.Println()
	fmt.Println(styles.Info("🧪 Quality Commands:"))
	fmt.Println(styles.Example("ci", "Run full CI pipeline (format, test, lint)"))
	fmt.Println(styles.Example("test", "Run all tests against the pure Go engine"))
	fmt.Println(styles.Example("testcgo", "Run all tests with the native engine backend (needs BTRCALL_LIBRARY)"))
	fmt.Println(styles.Example("lint", "Run golangci-lint on project code"))
	fmt.Println(styles.Example("lintall", "Run golangci-lint on project code, cgo backend and magefiles"))
	fmt.Println(styles.Example("format", "Format Go code using gofmt"))
	fmt.Println()
	fmt.Println(styles.Info("🗄 Engine Commands:"))
	fmt.Println(styles.Example("build", "Build the btrdemo client into bin/"))
	fmt.Println(styles.Example("demo", "Seed a scratch file and run the demo call sequence"))
	fmt.Println()
	fmt.Println(styles.Info("📋 Version & Release:"))
	fmt.Println(styles.Example("version", "Display current version from VERSION file"))
	fmt.Println(styles.Example("release", "Create and push annotated release tag"))
	fmt.Println(styles.Example("publish", "Run checks, build, and publish new release"))
	fmt.Println()
	fmt.Println(styles.Info("🔍 Git Commands:"))
	fmt.Println(styles.Example("git:committed", "Check if git repository has no uncommitted changes"))
	fmt.Println(styles.Example("git:pushed", "Check if all commits are pushed to remote"))
	fmt.Println()
	fmt.Printf("%s %s\n", styles.Info("Usage:"), "mage <command>")
	fmt.Println(styles.Dim("Examples:"))
	fmt.Printf("%s %s\n", styles.Dim("  Run CI pipeline:"), styles.Code("mage ci"))
	fmt.Printf("%s %s\n", styles.Dim("  Native backend:"), styles.Code("BTRCALL_LIBRARY=/opt/btrieve/libwbtrv32.so mage testcgo"))
	fmt.Printf("%s %s\n", styles.Dim("  Full publish:"), styles.Code("mage publish"))
	fmt.Printf("%s %s\n", styles.Dim("Tip:"), "Run 'mage -l' to list all available commands")
	fmt.Println()
	fmt.Println(styles.Success("Ready to go!"))
}

// CI runs the full CI pipeline: format, test, lint
func CI() error {
	fmt.Println(styles.Header("🚀 Running CI pipeline..."))
	fmt.Println()

	for _, task := range []func() error{Format, Test, Lint} {
		if err := task(); err != nil {
			return err
		}
		fmt.Println()
	}

	fmt.Println(styles.Success("🎉 CI pipeline completed successfully!"))
	return nil
}

// Test runs all tests against the pure Go engine
func Test() error {
	fmt.Println(styles.Info("Running tests (pure Go engine)..."))

	if err := sh.RunV("go", "test", "./...", "-count=1", "-race"); err != nil {
		return fmt.Errorf("%s tests failed: %v", styles.Error("Error:"), err)
	}

	fmt.Println(styles.Success("All tests passed"))
	return nil
}

// TestCgo runs all tests with the native backend. The engine library is taken
// from BTRCALL_LIBRARY.
func TestCgo() error {
	lib := os.Getenv("BTRCALL_LIBRARY")
	if lib == "" {
		fmt.Println(styles.Warning("BTRCALL_LIBRARY is not set; the loader will search for libwbtrv32.so"))
	} else {
		fmt.Printf("%s %s\n", styles.Info("Engine library:"), styles.Code(lib))
	}

	env := map[string]string{"CGO_ENABLED": "1"}
	if err := sh.RunWithV(env, "go", "test", "-tags", cgoTag, "./...", "-count=1"); err != nil {
		return fmt.Errorf("%s cgo tests failed: %v", styles.Error("Error:"), err)
	}

	fmt.Println(styles.Success("All cgo tests passed"))
	return nil
}

// Lint runs golangci-lint on the project (excludes magefiles)
func Lint() error {
	fmt.Println(styles.Info("Running golangci-lint..."))

	if err := sh.RunV("golangci-lint", "run"); err != nil {
		return fmt.Errorf("%s linting failed: %v", styles.Error("Error:"), err)
	}

	fmt.Println(styles.Success("Linting completed successfully"))
	return nil
}

// LintAll runs golangci-lint on the project including the cgo backend and magefiles
func LintAll() error {
	fmt.Println(styles.Info("Running golangci-lint (cgo backend and magefiles)..."))

	if err := sh.RunV("golangci-lint", "run", "--build-tags=mage,"+cgoTag); err != nil {
		return fmt.Errorf("%s linting failed: %v", styles.Error("Error:"), err)
	}

	fmt.Println(styles.Success("Linting completed successfully"))
	return nil
}

// Format runs gofmt on all Go files in the project
func Format() error {
	fmt.Println(styles.Info("Formatting Go code with gofmt..."))

	if err := sh.RunV("gofmt", "-s", "-w", "."); err != nil {
		return fmt.Errorf("%s formatting failed: %v", styles.Error("Error:"), err)
	}

	fmt.Println(styles.Success("Code formatting completed successfully"))
	return nil
}

// Build compiles the btrdemo client into bin/
func Build() error {
	version, err := GetVersion()
	if err != nil {
		return err
	}

	out := filepath.Join("bin", "btrdemo")
	fmt.Printf("%s %s %s\n", styles.Info("Building"), styles.Code(out), styles.Dim(version))
	if err := sh.RunV("go", "build", "-o", out, "./cmd/btrdemo"); err != nil {
		return fmt.Errorf("%s build failed: %v", styles.Error("Error:"), err)
	}
	return nil
}

// Demo seeds a scratch data file and runs the demo call sequence against it
func Demo() error {
	dir, err := os.MkdirTemp("", "btrdemo")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	return sh.RunV("go", "run", "./cmd/btrdemo", "run", "--seed", "--file", filepath.Join(dir, "demo.dat"))
}

// GetVersion reads the version from the VERSION file
func GetVersion() (string, error) {
	data, err := os.ReadFile("VERSION")
	if err != nil {
		return "", fmt.Errorf("failed to read VERSION file: %w", err)
	}

	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", fmt.Errorf("VERSION file is empty")
	}

	if matched, _ := regexp.MatchString(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9]+)?$`, version); !matched {
		return "", fmt.Errorf("invalid version format: %s (expected format: x.y.z or vx.y.z)", version)
	}

	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}

	return version, nil
}

// Version displays the current version
func Version() error {
	version, err := GetVersion()
	if err != nil {
		return err
	}

	fmt.Printf("%s Current version: %s\n", styles.Info("📋"), styles.Success(version))
	return nil
}

// releaseBranchEnv names a branch other than main/master that may be released
const releaseBranchEnv = "BTRCALL_RELEASE_BRANCH"

// CheckGitStatus requires a clean tree on main, master, or the branch named
// by BTRCALL_RELEASE_BRANCH
func CheckGitStatus() error {
	if !isGitClean() {
		return fmt.Errorf("%s repository has uncommitted changes. Commit or stash changes before publishing", styles.Error("Error:"))
	}

	branch, err := sh.Output("git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return fmt.Errorf("failed to get current branch: %w", err)
	}

	switch branch = strings.TrimSpace(branch); branch {
	case "main", "master", os.Getenv(releaseBranchEnv):
		return nil
	}
	return fmt.Errorf("%s refusing to release from branch '%s'; set %s=%s to allow it",
		styles.Error("Error:"), branch, releaseBranchEnv, branch)
}

// CheckVersionBump ensures no tag exists yet for version
func CheckVersionBump(version string) error {
	if err := sh.Run("git", "rev-parse", "--quiet", "--verify", "refs/tags/"+version); err == nil {
		return fmt.Errorf("%s version %s is already tagged. Bump the VERSION file", styles.Error("Error:"), version)
	}

	latest, err := sh.Output("git", "describe", "--tags", "--abbrev=0")
	if err != nil {
		fmt.Println(styles.Info("No existing tags; this is the first release"))
		return nil
	}
	fmt.Printf("%s %s → %s\n", styles.Info("Version bump:"), styles.Dim(strings.TrimSpace(latest)), styles.Success(version))
	return nil
}

// prepareRelease checks that version can be tagged from the current tree and
// that the demo client still builds.
func prepareRelease(version string) error {
	if err := CheckGitStatus(); err != nil {
		return err
	}
	if err := CheckVersionBump(version); err != nil {
		return err
	}
	return Build()
}

// Release tags the current commit, which must already be on the remote
func Release() error {
	fmt.Println(styles.Header("🚀 Creating release..."))
	fmt.Println()

	version, err := GetVersion()
	if err != nil {
		return err
	}
	if !isGitPushed() {
		return fmt.Errorf("%s push the current branch before tagging, or use 'mage publish'", styles.Error("Error:"))
	}
	if err := prepareRelease(version); err != nil {
		return err
	}

	return createAndPushTag(version)
}

// createAndPushTag creates and pushes an annotated tag for the current commit
func createAndPushTag(version string) error {
	commit, err := sh.Output("git", "rev-parse", "--short", "HEAD")
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	fmt.Printf("%s Tagging %s as %s...\n", styles.Info("🏷️"), styles.Code(strings.TrimSpace(commit)), styles.Success(version))
	message := fmt.Sprintf("btrcall %s", version)
	if err := sh.Run("git", "tag", "-a", version, "-m", message); err != nil {
		return fmt.Errorf("%s failed to create tag: %w", styles.Error("Error:"), err)
	}
	if err := sh.Run("git", "push", "origin", version); err != nil {
		return fmt.Errorf("%s failed to push tag: %w", styles.Error("Error:"), err)
	}

	fmt.Printf("%s %s tagged and pushed\n", styles.Success("Done:"), version)
	return nil
}

// Publish runs CI, pushes the current branch and releases it
func Publish() error {
	fmt.Println(styles.Header("🚀 Publishing btrcall..."))
	fmt.Println()

	version, err := GetVersion()
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", styles.Info("Version:"), styles.Success(version))

	mg.SerialDeps(CI)
	if err := prepareRelease(version); err != nil {
		return err
	}

	if err := sh.Run("git", "push"); err != nil {
		return fmt.Errorf("%s failed to push current branch: %w", styles.Error("Error:"), err)
	}
	if err := createAndPushTag(version); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("%s https://github.com/mkfoss/btrcall/releases/tag/%s\n", styles.Info("Release:"), version)
	return nil
}

// Git namespace for git-related commands
type Git mg.Namespace

// Committed checks if the git repository has no uncommitted changes
func (Git) Committed() error {
	if !isGitClean() {
		return fmt.Errorf("%s repository is not clean", styles.Error("Error:"))
	}
	return nil
}

// Pushed checks if all commits have been pushed to the remote repository
func (Git) Pushed() error {
	if !isGitPushed() {
		return fmt.Errorf("%s there are unpushed commits", styles.Error("Error:"))
	}
	return nil
}

func isGitClean() bool {
	output, err := sh.Output("git", "status", "--porcelain")
	if err != nil {
		return false
	}
	return strings.TrimSpace(output) == ""
}

func isGitPushed() bool {
	output, err := sh.Output("git", "log", "--oneline", "@{u}..")
	if err != nil {
		// no upstream configured
		return false
	}
	return strings.TrimSpace(output) == ""
}

// Default target to run when no target is specified
var Default = Info
