// Package ignore builds the exclusion rules applied when packaging a project.
//
// Rules use one glob dialect: "**/" matches any number of leading
// directories (including none), a trailing "/**" matches everything beneath a
// directory, and "*" and "?" never cross a "/". Dot-files are matched like any
// other name.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileName is the optional user ignore file at the project root.
const FileName = ".hoistignore"

// Builtins are always excluded, whatever the user file says.
var Builtins = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/.env*",
	"**/*.log",
	"**/coverage/**",
	"**/.nyc_output/**",
	"**/.next/**",
	"**/.nuxt/**",
	"**/.cache/**",
	"**/tmp/**",
	"**/temp/**",
	"**/.hoist",
	"**/.hoist.env",
}

// RuleSet is an ordered, de-duplicated list of compiled globs.
type RuleSet struct {
	rules []rule
}

type rule struct {
	glob      string
	recursive bool
	re        *regexp.Regexp
}

// Resolve returns the built-in rules followed by the normalized lines of
// <projectRoot>/.hoistignore. A missing file is not an error. When the file
// exists but cannot be read, the built-in set is still returned together with
// the read error so the caller can warn and carry on.
func Resolve(projectRoot string) (RuleSet, error) {
	user, err := readUserFile(filepath.Join(projectRoot, FileName))
	if err != nil {
		return New(nil), fmt.Errorf("read %s: %w", FileName, err)
	}
	return New(user), nil
}

// New builds a rule set from the built-ins plus already-normalized user globs.
func New(user []string) RuleSet {
	seen := make(map[string]struct{}, len(Builtins)+len(user))
	var rs RuleSet
	add := func(glob string) {
		if glob == "" {
			return
		}
		if _, ok := seen[glob]; ok {
			return
		}
		seen[glob] = struct{}{}
		rs.rules = append(rs.rules, compile(glob))
	}
	for _, g := range Builtins {
		add(g)
	}
	for _, g := range user {
		add(g)
	}
	return rs
}

// Patterns returns the globs in evaluation order.
func (rs RuleSet) Patterns() []string {
	out := make([]string, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, r.glob)
	}
	return out
}

// Match reports whether the slash-separated path rel, relative to the project
// root, is excluded. For directories only recursive rules apply, so skipping a
// matched directory never changes which files end up in the archive.
func (rs RuleSet) Match(rel string, isDir bool) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if rel == "" || rel == "." {
		return false
	}
	if isDir {
		candidate := strings.TrimSuffix(rel, "/") + "/"
		for _, r := range rs.rules {
			if r.recursive && r.re.MatchString(candidate) {
				return true
			}
		}
		return false
	}
	for _, r := range rs.rules {
		if r.re.MatchString(rel) {
			return true
		}
	}
	return false
}

// Normalize converts one user ignore line into the rule dialect:
// "/foo" becomes "foo", a bare "foo" becomes "**/foo", "foo/" becomes
// "**/foo/**", and a line containing "*" is left alone apart from the
// leading and trailing slash handling. Blank and comment lines yield "".
func Normalize(line string) string {
	p := strings.TrimSpace(line)
	if p == "" || strings.HasPrefix(p, "#") {
		return ""
	}
	p = filepath.ToSlash(p)

	anchored := strings.HasPrefix(p, "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}

	dirOnly := strings.HasSuffix(p, "/")
	if !anchored && !strings.Contains(p, "*") {
		p = "**/" + p
	}
	if dirOnly {
		p += "**"
	}
	return p
}

func readUserFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if p := Normalize(sc.Text()); p != "" {
			out = append(out, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func compile(glob string) rule {
	recursive := strings.HasSuffix(glob, "/**")
	body := glob
	if recursive {
		body = strings.TrimSuffix(glob, "/**")
	}
	expr := "^" + globToRegex(body)
	if recursive {
		expr += "/.*"
	}
	expr += "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		// malformed class such as "[z-a]": treat the line literally
		re = regexp.MustCompile("^" + regexp.QuoteMeta(glob) + "$")
		recursive = false
	}
	return rule{glob: glob, recursive: recursive, re: re}
}

func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]

		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				// "**/" spans zero or more directories
				if i+2 < len(glob) && glob[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
					continue
				}
				b.WriteString(".*")
				i++
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			// copy character class verbatim until closing bracket
			j := i + 1
			for j < len(glob) && glob[j] != ']' {
				j++
			}
			if j >= len(glob) || j == i+1 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : j]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
