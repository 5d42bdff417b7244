// Package symlink discovers symlinked subdirectories of a project's code path.
package symlink

import (
	"os"
	"path/filepath"

	"github.com/grovetools/linkwatch/errors"
	"github.com/grovetools/linkwatch/logging"
	"github.com/sirupsen/logrus"
)

// MaxHops bounds how many links are followed before a chain is treated as a cycle.
const MaxHops = 255

// Link is a symlinked directory and the canonical directory it points to.
type Link struct {
	Path   string `json:"path"`
	Target string `json:"target"`
}

// Broken is a symlink whose chain ends at a path that does not exist.
type Broken struct {
	Path   string `json:"path"`
	Target string `json:"target"`
}

// Result is the full outcome of scanning a directory.
type Result struct {
	Links  []Link   `json:"links"`
	Broken []Broken `json:"broken,omitempty"`
}

// Resolver lists the symlinked subdirectories of a directory.
type Resolver struct {
	logger *logrus.Entry
}

// NewResolver creates a resolver that reports broken links to logger.
// A nil logger falls back to the package logger.
func NewResolver(logger *logrus.Entry) *Resolver {
	if logger == nil {
		logger = logging.NewLogger("symlink")
	}
	return &Resolver{logger: logger}
}

// ResolveChildren returns the immediate children of root that are symlinks to
// existing directories. Broken links are logged at warning level and left out.
func (r *Resolver) ResolveChildren(root string) ([]Link, error) {
	res, err := r.Scan(root)
	if err != nil {
		return nil, err
	}
	return res.Links, nil
}

// Scan is ResolveChildren that also reports the broken links it skipped.
func (r *Resolver) Scan(root string) (Result, error) {
	var res Result
	if root == "" {
		return res, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to list directory").
			WithDetail("path", root)
	}

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		link := filepath.Join(root, entry.Name())

		target, err := followChain(link)
		if err != nil {
			return res, err
		}

		info, err := os.Stat(target)
		if err != nil {
			if os.IsNotExist(err) {
				r.broken(&res, link, target)
				continue
			}
			return res, errors.SymlinkUnresolved(link, err)
		}
		if !info.IsDir() {
			r.logger.WithField("link", link).Debugf("Skipping symlink to non-directory %s", target)
			continue
		}

		canonical, err := filepath.EvalSymlinks(target)
		if err != nil {
			// Target vanished between Stat and EvalSymlinks.
			r.broken(&res, link, target)
			continue
		}
		res.Links = append(res.Links, Link{Path: link, Target: canonical})
	}
	return res, nil
}

func (r *Resolver) broken(res *Result, link, target string) {
	r.logger.WithFields(logrus.Fields{
		"link":   link,
		"target": target,
	}).Warnf("Broken symlink %s -/> %s", link, target)
	res.Broken = append(res.Broken, Broken{Path: link, Target: target})
}

// followChain walks link -> link -> ... and returns the first path that is not
// itself a symlink, or that does not exist.
func followChain(link string) (string, error) {
	current := link
	for hops := 0; hops <= MaxHops; hops++ {
		info, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return current, nil
			}
			return "", errors.SymlinkUnresolved(link, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return current, nil
		}

		dest, err := os.Readlink(current)
		if err != nil {
			return "", errors.SymlinkUnresolved(link, err)
		}
		if dest == "" {
			return "", errors.SymlinkUnresolved(link, nil)
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(current), dest)
		}
		current = dest
	}
	return "", errors.SymlinkUnresolved(link, nil).WithDetail("hops", MaxHops)
}
