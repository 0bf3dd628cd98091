// Package assemblies resolves the test assemblies the runner is invoked with.
package assemblies

import (
	"context"
	"fmt"

	"github.com/ethereum-optimism/infra/op-vstest/actions"
	"github.com/ethereum-optimism/infra/op-vstest/search"
)

// SearchFunc finds the files matching a search pattern.
type SearchFunc func(ctx context.Context, searchPath string, opts *search.Options) (*search.SearchResult, error)

// Resolver finds test assemblies from the searchFolder and testAssembly inputs.
type Resolver struct {
	reporter actions.Reporter
	search   SearchFunc
	opts     *search.Options
}

// NewResolver creates a Resolver. A nil searchFn uses search.FindFilesToUpload;
// opts is passed to every search, so its BaseDir anchors relative inputs.
func NewResolver(reporter actions.Reporter, searchFn SearchFunc, opts *search.Options) *Resolver {
	if searchFn == nil {
		searchFn = search.FindFilesToUpload
	}
	return &Resolver{reporter: reporter, search: searchFn, opts: opts}
}

// Pattern joins the two inputs into the search pattern. The inputs are
// concatenated as-is, so searchFolder is expected to end with a separator.
func Pattern(searchFolder, testAssembly string) string {
	return searchFolder + testAssembly
}

// ResolveResult returns the matched assemblies, or the error that stopped the
// search. An empty slice with a nil error means nothing matched.
func (r *Resolver) ResolveResult(ctx context.Context, searchFolder, testAssembly string) ([]string, error) {
	pattern := Pattern(searchFolder, testAssembly)
	r.reporter.Debug(fmt.Sprintf("Pattern to search test assemblies: %s", pattern))

	result, err := r.search(ctx, pattern, r.opts)
	if err != nil {
		return []string{}, fmt.Errorf("failed to search test assemblies: %w", err)
	}
	if result == nil || result.FilesToUpload == nil {
		return []string{}, nil
	}
	return result.FilesToUpload, nil
}

// Resolve returns the matched assemblies. Failures are reported and yield an
// empty slice, the same as a search that matched nothing.
func (r *Resolver) Resolve(ctx context.Context, searchFolder, testAssembly string) []string {
	files, err := r.ResolveResult(ctx, searchFolder, testAssembly)
	if err != nil {
		r.reporter.Error(err.Error())
		return []string{}
	}
	return files
}
