package driver

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"surge/internal/di"
	"surge/internal/diag"
	"surge/internal/mir"
	"surge/internal/types"
)

// DIFuncResult содержит результат проверки определённой инициализации для
// одной функции модуля.
type DIFuncResult struct {
	FuncID   mir.FuncID
	FuncName string
	HadError bool
	Bag      *diag.Bag
	// Invariant is non-nil if the checker hit an internal invariant
	// violation (never a user diagnostic) while checking this function.
	Invariant error
}

// RunDI параллельно прогоняет internal/di по каждой функции модуля m, одна
// горутина на функцию (внутри одной функции Checker всегда однопоточный,
// см. internal/di/checker.go). Порядок результатов детерминирован — по
// FuncID, как и в TokenizeDir/ParseDir. When enableCache is set, each
// function's outcome is looked up in (and, on a miss, stored into) the
// on-disk DI cache keyed by FuncDigest, the same opt-in shape as
// DiagnoseOptions.EnableDiskCache in parallel_diagnose.go.
func RunDI(ctx context.Context, m *mir.Module, typesIn *types.Interner, maxDiagnostics, jobs int, opts di.Options, enableCache bool) ([]DIFuncResult, error) {
	ids := make([]mir.FuncID, 0, len(m.Funcs))
	for id := range m.Funcs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if len(ids) == 0 {
		return nil, nil
	}

	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	var dcache *DICache
	if enableCache {
		var err error
		dcache, err = OpenDICache("surge")
		if err != nil {
			return nil, err
		}
	}

	results := make([]DIFuncResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(ids)))

	for i, id := range ids {
		g.Go(func(i int, id mir.FuncID) func() error {
			return func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				f := m.Funcs[id]
				digest := FuncDigest(f.Name, len(f.Blocks), countInstrs(f))

				if dcache != nil {
					bag := diag.NewBag(maxDiagnostics)
					if hadError, hit, err := dcache.Get(digest, bag); err == nil && hit {
						results[i] = DIFuncResult{FuncID: id, FuncName: f.Name, HadError: hadError, Bag: bag}
						return nil
					}
				}

				bag := diag.NewBag(maxDiagnostics)
				reporter := diag.BagReporter{Bag: bag}

				var hadError bool
				var invariantErr error
				func() {
					defer di.Recover(&invariantErr)
					hadError = di.CheckFunc(f, typesIn, reporter, opts)
				}()

				results[i] = DIFuncResult{
					FuncID:    id,
					FuncName:  f.Name,
					HadError:  hadError,
					Bag:       bag,
					Invariant: invariantErr,
				}

				if dcache != nil && invariantErr == nil {
					_ = dcache.Put(digest, f.Name, hadError, bag.Items()) //nolint:errcheck // cache is best-effort
				}
				return nil
			}
		}(i, id))
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// countInstrs sums instruction counts across f's blocks, used to build
// FuncDigest's body-shape component.
func countInstrs(f *mir.Func) int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

// MergeDIResults объединяет все per-function bags в один, отсортированный и
// дедуплицированный, для единого вывода диагностик по модулю.
func MergeDIResults(results []DIFuncResult) *diag.Bag {
	merged := diag.NewBag(0)
	for _, r := range results {
		if r.Bag != nil {
			merged.Merge(r.Bag)
		}
	}
	merged.Sort()
	merged.Dedup()
	return merged
}
