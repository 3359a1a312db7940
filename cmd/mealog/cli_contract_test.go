package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"mealog/internal/config"
)

const maxCmdConstructorLines = 100

var (
	configKeyBullet = regexp.MustCompile("^- `([a-z_.]+)`")
	envKeyPattern   = regexp.MustCompile(`MEALOG_[A-Z0-9_]+`)
)

func TestReadmeListsEveryConfigKey(t *testing.T) {
	section := readmeSection(t, "Supported config keys:", "\n\n")
	var documented []string
	for _, line := range strings.Split(section, "\n") {
		if m := configKeyBullet.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			documented = append(documented, m[1])
		}
	}

	allowed := slices.Clone(config.AllowedKeys())
	slices.Sort(documented)
	slices.Sort(allowed)
	if !slices.Equal(documented, allowed) {
		t.Fatalf("README config keys mismatch\ndocumented: %v\nallowed:    %v", documented, allowed)
	}
}

func TestReadmeListsEveryLeafCommand(t *testing.T) {
	block := readmeSection(t, "## Commands\n\n```bash", "```")
	documented := map[string]bool{}
	for _, line := range strings.Split(block, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "mealog" {
			continue
		}
		var path []string
		for _, field := range fields[1:] {
			if strings.ContainsAny(field[:1], "<[-#") {
				break
			}
			path = append(path, field)
		}
		documented[strings.Join(path, " ")] = true
	}

	cfg := config.Default()
	for _, path := range leafCommandPaths(newRootCmd(&cfg), nil) {
		if !documented[path] {
			t.Errorf("command %q is missing from the README", path)
		}
		delete(documented, path)
	}
	for path := range documented {
		t.Errorf("README documents unknown command %q", path)
	}
}

func TestReadmeDocumentsRuntimeEnvironment(t *testing.T) {
	readme := loadReadme(t)
	found := map[string]bool{}
	for _, key := range envKeyPattern.FindAllString(readme, -1) {
		found[key] = true
	}
	for _, key := range []string{
		"MEALOG_API_URL",
		"MEALOG_DB",
		"MEALOG_HTTP_TIMEOUT",
		"MEALOG_LOG_LEVEL",
		"MEALOG_CONFIG_DIR",
		"MEALOG_PUBLIC_ROOT",
		"MEALOG_SESSION_SECRET",
		"MEALOG_MINIO_ACCESS_KEY",
		"MEALOG_MINIO_SECRET_KEY",
		"MEALOG_ALLOW_REMOTE",
	} {
		if !found[key] {
			t.Errorf("README does not mention %s", key)
		}
	}
}

func TestLeafCommandsDescribeThemselves(t *testing.T) {
	cfg := config.Default()
	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		children := visibleChildren(cmd)
		if len(children) == 0 {
			if cmd.Short == "" {
				t.Errorf("command %q has no short description", cmd.CommandPath())
			}
			if strings.Contains(cmd.Use, "<") && cmd.Args == nil {
				t.Errorf("command %q takes arguments but does not validate them", cmd.CommandPath())
			}
			if cmd.RunE == nil {
				t.Errorf("command %q has no RunE", cmd.CommandPath())
			}
		}
		for _, child := range children {
			walk(child)
		}
	}
	walk(newRootCmd(&cfg))
}

func TestCommandConstructorsStaySmall(t *testing.T) {
	fset := token.NewFileSet()
	for _, path := range commandSourceFiles(t) {
		file, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Body == nil || !strings.HasPrefix(fn.Name.Name, "new") || !strings.HasSuffix(fn.Name.Name, "Cmd") {
				continue
			}
			lines := fset.Position(fn.Body.Rbrace).Line - fset.Position(fn.Body.Lbrace).Line + 1
			if lines > maxCmdConstructorLines {
				t.Errorf("%s in %s is %d lines (max %d)", fn.Name.Name, filepath.Base(path), lines, maxCmdConstructorLines)
			}
		}
	}
}

func packageDir(t *testing.T) string {
	t.Helper()
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(self)
}

func loadReadme(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(packageDir(t), "..", "..", "README.md"))
	if err != nil {
		t.Fatalf("read README.md: %v", err)
	}
	return string(data)
}

// readmeSection returns the README text between start and the next end marker.
func readmeSection(t *testing.T, start, end string) string {
	t.Helper()
	readme := loadReadme(t)
	i := strings.Index(readme, start)
	if i == -1 {
		t.Fatalf("README has no %q section", start)
	}
	rest := strings.TrimLeft(readme[i+len(start):], "\n")
	if j := strings.Index(rest, end); j != -1 {
		rest = rest[:j]
	}
	return rest
}

func commandSourceFiles(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(packageDir(t), "*.go"))
	if err != nil {
		t.Fatalf("glob sources: %v", err)
	}
	files := matches[:0]
	for _, path := range matches {
		if !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
	}
	return files
}

func leafCommandPaths(cmd *cobra.Command, prefix []string) []string {
	children := visibleChildren(cmd)
	if len(children) == 0 {
		if len(prefix) == 0 {
			return nil
		}
		return []string{strings.Join(prefix, " ")}
	}
	var paths []string
	for _, child := range children {
		paths = append(paths, leafCommandPaths(child, append(slices.Clone(prefix), child.Name()))...)
	}
	return paths
}

func visibleChildren(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}
		out = append(out, child)
	}
	return out
}
