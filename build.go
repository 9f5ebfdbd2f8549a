//go:build ignore

// build.go - Apple Health Processor build system
// Usage: go run build.go [-target=TARGET]
// Targets: all, processor, web, test, clean, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

const module = "github.com/mitchens84/APPLE-HEALTH"

var (
	rootDir string
	distDir string

	// Binaries built from cmd/ (key = cmd dir name, value = output name)
	binaries = map[string]string{
		"processor": "health-processor",
		"web":       "health-web",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current directory: %v", err))
	}
	rootDir = cwd
	distDir = filepath.Join(rootDir, "dist")

	if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); os.IsNotExist(err) {
		panic("go.mod not found; run build.go from the repository root")
	}
}

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	switch *target {
	case "all":
		buildAll(*verbose)
	case "processor", "web":
		buildBinary(*target, *verbose)
	case "test":
		runTests(*verbose)
	case "clean":
		clean(*verbose)
	case "release":
		buildRelease(*verbose)
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "=========================================" + colorReset)
	fmt.Println(colorCyan + "  Apple Health Processor - Build System  " + colorReset)
	fmt.Println(colorCyan + "=========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func buildAll(verbose bool) {
	if err := os.MkdirAll(distDir, 0755); err != nil {
		printError(fmt.Sprintf("Failed to create dist directory: %v", err))
		os.Exit(1)
	}
	for name := range binaries {
		buildBinary(name, verbose)
	}
}

func buildBinary(name string, verbose bool) {
	output := binaries[name]
	if runtime.GOOS == "windows" {
		output += ".exe"
	}
	outputPath := filepath.Join(distDir, output)

	printInfo(fmt.Sprintf("Building %s...", output))

	if err := os.MkdirAll(distDir, 0755); err != nil {
		printError(fmt.Sprintf("Failed to create dist directory: %v", err))
		os.Exit(1)
	}

	ldflags := fmt.Sprintf("-X %s/internal/app.BuildTime=%s",
		module, time.Now().UTC().Format(time.RFC3339))

	args := []string{"build", "-ldflags", ldflags, "-o", outputPath, "./cmd/" + name}
	if verbose {
		args = append(args[:1], append([]string{"-v"}, args[1:]...)...)
	}

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", output, err))
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Built %s", outputPath))
}

func runTests(verbose bool) {
	printInfo("Running tests...")

	args := []string{"test", "./..."}
	if verbose {
		args = append(args, "-v")
	}

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Tests failed: %v", err))
		os.Exit(1)
	}
}

func clean(verbose bool) {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil {
		printError(fmt.Sprintf("Failed to remove dist directory: %v", err))
		os.Exit(1)
	}
	if verbose {
		printInfo(fmt.Sprintf("Removed %s", distDir))
	}
}

// buildRelease runs the tests and rebuilds everything from a clean dist.
func buildRelease(verbose bool) {
	runTests(verbose)
	clean(verbose)
	buildAll(verbose)
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all        Build every binary into dist/ (default)")
	fmt.Println("  processor  Build the CLI processor")
	fmt.Println("  web        Build the web service")
	fmt.Println("  test       Run the test suite")
	fmt.Println("  clean      Remove build artifacts")
	fmt.Println("  release    Test, clean and rebuild everything")
}
