package report

import (
	"errors"
	"iter"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// Loader returns the session records for a provider that has a reader.
type Loader func(id provider.ID) (iter.Seq[model.SessionRecord], error)

// ProviderResult is one provider's report or its error. Exactly one is set.
type ProviderResult struct {
	Provider provider.ID
	Report   *model.CostReport
	Err      *model.FetchError
}

// BuildCollection builds a report per provider. Providers without a session
// reader get UnsupportedOperation; one failure never stops the others.
func BuildCollection(ids []provider.ID, load Loader, opts Options) []ProviderResult {
	results := make([]ProviderResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, buildOne(id, load, opts))
	}
	return results
}

func buildOne(id provider.ID, load Loader, opts Options) ProviderResult {
	res := ProviderResult{Provider: id}
	spec, ok := provider.Lookup(id)
	if !ok || !spec.Reports || load == nil {
		res.Err = &model.FetchError{
			Kind:     model.KindUnsupportedOperation,
			Provider: string(id),
			Message:  "report not implemented",
		}
		return res
	}

	records, err := load(id)
	if err != nil {
		res.Err = providerError(id, err)
		return res
	}
	rep, err := Build(id, records, opts)
	if err != nil {
		res.Err = providerError(id, err)
		return res
	}
	res.Report = &rep
	return res
}

func providerError(id provider.ID, err error) *model.FetchError {
	var re *Error
	if errors.As(err, &re) {
		return re.FetchError(string(id))
	}
	fe := *model.AsFetchError(err)
	fe.Provider = string(id)
	return &fe
}

// ExitCode returns the process exit status for a collection: 0 when every
// report was built, otherwise the most severe failure code.
func ExitCode(results []ProviderResult) int {
	code := 0
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if c := r.Err.Kind.ExitCode(); model.Severity(c) > model.Severity(code) {
			code = c
		}
	}
	return code
}
