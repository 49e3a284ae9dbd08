package commands

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/iota-uz/admin-portal/modules"
	"github.com/iota-uz/admin-portal/pkg/commands/common"
	"github.com/iota-uz/admin-portal/pkg/configuration"
)

type trUsage struct {
	Key  string
	File string
	Line int
}

var templateTCallRe = regexp.MustCompile(`\.T "([^"]+)"`)

var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"_examples":    true,
}

// CheckTrKeys reports every translation key used in root that is missing
// from one of the supported locales.
func CheckTrKeys(root string) error {
	logger := configuration.Use().Logger()
	app, err := common.NewApplication(nil, modules.BuiltInModules...)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	usages, err := collectTrUsages(root)
	if err != nil {
		return err
	}
	if len(usages) == 0 {
		return fmt.Errorf("no translation usages found under %s", root)
	}

	messages := app.Bundle().Messages()
	tags := make(map[string]language.Tag)
	for _, code := range app.GetSupportedLanguages() {
		tag, err := language.Parse(code)
		if err != nil {
			return fmt.Errorf("invalid language %q: %w", code, err)
		}
		if messages[tag] == nil {
			return fmt.Errorf("language %q has no locale files", code)
		}
		tags[code] = tag
	}

	missing := missingKeys(usages, tags, func(tag language.Tag, key string) bool {
		return messages[tag][key] != nil
	})
	for _, m := range missing {
		logger.WithFields(logrus.Fields{
			"locale": m.locale,
			"key":    m.Key,
			"source": fmt.Sprintf("%s:%d", m.File, m.Line),
		}).Error("translation key missing")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%d translation keys are missing", len(missing))
	}
	logger.WithField("keys", len(usages)).Info("all translation keys are present")
	return nil
}

type missingKey struct {
	trUsage
	locale string
}

// missingKeys checks each distinct key once, reporting its first usage.
func missingKeys(usages []trUsage, tags map[string]language.Tag, has func(language.Tag, string) bool) []missingKey {
	locales := make([]string, 0, len(tags))
	for code := range tags {
		locales = append(locales, code)
	}
	sort.Strings(locales)

	var out []missingKey
	seen := make(map[string]bool)
	for _, u := range usages {
		if u.Key == "" || seen[u.Key] {
			continue
		}
		seen[u.Key] = true
		for _, code := range locales {
			if !has(tags[code], u.Key) {
				out = append(out, missingKey{trUsage: u, locale: code})
			}
		}
	}
	return out
}

func collectTrUsages(root string) ([]trUsage, error) {
	var usages []trUsage
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		var found []trUsage
		switch {
		case strings.HasSuffix(rel, "_test.go"):
			return nil
		case strings.HasSuffix(rel, ".go"):
			found, err = collectTrUsagesFromGoFile(path, rel)
		case strings.HasSuffix(rel, ".html"):
			found, err = collectTrUsagesFromTemplate(path, rel)
		}
		if err != nil {
			return err
		}
		usages = append(usages, found...)
		return nil
	})
	return usages, err
}

func collectTrUsagesFromTemplate(absPath, relPath string) ([]trUsage, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var usages []trUsage
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		for _, m := range templateTCallRe.FindAllStringSubmatch(scanner.Text(), -1) {
			usages = append(usages, trUsage{Key: m[1], File: relPath, Line: line})
		}
	}
	return usages, scanner.Err()
}

// collectTrUsagesFromGoFile finds literal keys passed to T and MustT,
// error keys given to serrors.NewError and "Nav." link names.
func collectTrUsagesFromGoFile(absPath, relPath string) ([]trUsage, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, absPath, nil, 0)
	if err != nil {
		return nil, err
	}

	var usages []trUsage
	add := func(expr ast.Expr) {
		if key, ok := stringLiteral(expr); ok {
			usages = append(usages, trUsage{Key: key, File: relPath, Line: fset.Position(expr.Pos()).Line})
		}
	}
	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.CallExpr:
			selector, ok := node.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			switch selector.Sel.Name {
			case "T", "MustT":
				// intl.T(ctx, key) and pageCtx.T(key) both qualify.
				for i := 0; i < len(node.Args) && i < 2; i++ {
					if key, ok := stringLiteral(node.Args[i]); ok && strings.Contains(key, ".") {
						add(node.Args[i])
						break
					}
				}
			case "NewError":
				if len(node.Args) == 3 {
					add(node.Args[2])
				}
			}
		case *ast.KeyValueExpr:
			ident, ok := node.Key.(*ast.Ident)
			if !ok || (ident.Name != "Name" && ident.Name != "MessageID") {
				return true
			}
			if key, ok := stringLiteral(node.Value); ok && (ident.Name == "MessageID" || strings.HasPrefix(key, "Nav.")) {
				add(node.Value)
			}
		}
		return true
	})
	return usages, nil
}

func stringLiteral(expr ast.Expr) (string, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	unquoted, err := strconv.Unquote(lit.Value)
	if err != nil || unquoted == "" {
		return "", false
	}
	return unquoted, true
}
